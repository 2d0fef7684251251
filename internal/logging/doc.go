// Package logging provides structured logging utilities for agenda.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "normalize.events")
//	logger.Warn("skipping event",
//	    logging.RecordID(raw.ID), logging.Err(err))
//
// Feed URLs are redacted before logging because private calendar links embed
// access keys:
//
//	logger.Info("fetching feed", "url", logging.RedactURL(feed.URL))
package logging
