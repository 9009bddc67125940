package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform"
)

// Fetcher builds http requests and fetches listing pages.
// Requests to the same host are spaced at least minInterval apart so a
// scan never hammers a single realtor site.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	minInterval time.Duration

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

// NewFetcher returns a new Fetcher.
func NewFetcher(client *http.Client, userAgent string, minInterval time.Duration) *Fetcher {
	return &Fetcher{
		client:      client,
		userAgent:   userAgent,
		minInterval: minInterval,
		lastFetch:   make(map[string]time.Time),
	}
}

// FetchPage fetches pageURL and returns the response body.
// Network errors, timeouts and 5xx/429 responses wrap
// platform.ErrFetchFailure; other non-200 statuses wrap
// platform.ErrParseFailure since retrying them won't help.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if err := f.waitTurn(ctx, pageURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("can't build http request: %w", err)
	}

	req.Header.Add("Accept", "text/html,application/xhtml+xml")
	req.Header.Add("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.7")
	req.Header.Add("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't get http response: %w: %w", platform.ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s returned status %d", platform.ErrFetchFailure, pageURL, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: %s returned status %d", platform.ErrParseFailure, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("can't read response body: %w: %w", platform.ErrFetchFailure, err)
	}

	return body, nil
}

// waitTurn blocks until the per-host request interval has elapsed or ctx is cancelled.
func (f *Fetcher) waitTurn(ctx context.Context, pageURL string) error {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("can't parse url: %w", err)
	}

	f.mu.Lock()
	now := time.Now()
	next := f.lastFetch[parsed.Host].Add(f.minInterval)
	if next.Before(now) {
		next = now
	}
	f.lastFetch[parsed.Host] = next
	f.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
