package input

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const maxRetries = 3

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Fetcher downloads NDJSON exports over HTTP with optional Bearer auth.
type Fetcher struct {
	token      string
	httpClient *http.Client
	backoff    func(attempt int, lastErr *APIError) time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the HTTP client timeout. The timeout covers reading the
// whole body, so large exports need a generous value.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.httpClient.Timeout = d }
}

// NewFetcher creates a Fetcher. An empty token sends no Authorization header.
func NewFetcher(token string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		backoff:    backoffDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch sends a GET request and returns the response body for streaming.
// Returns *APIError for non-2xx responses. Retries on 429 (with Retry-After)
// and 5xx (with exponential backoff: 1s, 2s, 4s). Max 3 retries.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(f.backoff(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if f.token != "" {
			req.Header.Set("Authorization", "Bearer "+f.token)
		}
		req.Header.Set("Accept", "application/x-ndjson")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
		case resp.StatusCode >= 500:
			lastErr = apiErr
		default:
			return nil, apiErr
		}
	}
	return nil, lastErr
}

// backoffDelay returns the wait duration before a retry attempt.
func backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<(attempt-1)) * time.Second
}
