// Package google connects agenda to a Google account.
//
// It loads OAuth client credentials, runs the loopback authorization flow,
// keeps one token file per account and hands out refreshing HTTP clients
// through the TokenProvider interface. Source combines the Calendar and Tasks
// clients of one account into a source.CalendarSource.
package google
