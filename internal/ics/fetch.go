package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teemow/agenda/internal/logging"
)

// maxFeedSize caps the body read from a feed.
const maxFeedSize = 32 << 20

// Feed is one configured ICS feed.
type Feed struct {
	// Name is the calendar name the feed's events appear under.
	Name string

	// Location is a local file path, a file:// URL or an http(s) URL.
	// webcal:// is read as https://.
	Location string

	Color string
}

func (f Feed) isRemote() bool {
	l := strings.ToLower(f.Location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "webcal://")
}

func (f Feed) url() string {
	if strings.HasPrefix(strings.ToLower(f.Location), "webcal://") {
		return "https://" + f.Location[len("webcal://"):]
	}
	return f.Location
}

// cacheEntry holds HTTP cache metadata and the last good body of a URL.
type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher reads feed bodies. Remote feeds are fetched with conditional
// requests; when a request fails, the last good body is used if there is one.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher creates a Fetcher. A nil client gets one with a 15s timeout.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger, cache: make(map[string]cacheEntry)}
}

// Fetch returns the body of a feed.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) ([]byte, error) {
	if feed.Location == "" {
		return nil, errors.New("feed location is empty")
	}
	if !feed.isRemote() {
		path := strings.TrimPrefix(feed.Location, "file://")
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read feed %s: %w", feed.Name, err)
		}
		return body, nil
	}
	return f.fetchURL(ctx, feed)
}

func (f *Fetcher) fetchURL(ctx context.Context, feed Feed) ([]byte, error) {
	url := feed.url()
	logger := f.logger.With(logging.Calendar(feed.Name), slog.String("url", logging.RedactURL(url)))

	f.mu.Lock()
	cached := f.cache[url]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL for %s: %w", feed.Name, err)
	}
	req.Header.Set("Accept", "text/calendar")
	if cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	if cached.lastModified != "" {
		req.Header.Set("If-Modified-Since", cached.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if cached.body != nil && ctx.Err() == nil {
			logger.Warn("feed fetch failed, using cached body", logging.Err(err))
			return cached.body, nil
		}
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read feed %s: %w", feed.Name, err)
		}
		f.mu.Lock()
		f.cache[url] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()
		logger.Debug("feed fetched", slog.Int("bytes", len(body)))
		return body, nil

	case http.StatusNotModified:
		if cached.body == nil {
			return nil, fmt.Errorf("feed %s: 304 Not Modified without a cached body", feed.Name)
		}
		logger.Debug("feed not modified")
		return cached.body, nil

	default:
		if cached.body != nil {
			logger.Warn("feed fetch returned non-OK status, using cached body", logging.Status(resp.Status))
			return cached.body, nil
		}
		return nil, fmt.Errorf("failed to fetch feed %s: %s", feed.Name, resp.Status)
	}
}
