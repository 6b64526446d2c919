package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	userAgent     = "vidfetch/1.0"
	copyChunkSize = 1 << 20 // stream to disk in 1MB chunks
)

// HTTPOptions configures the HTTP transfer client's internal retry policy.
// This is the transport-level policy for transient statuses, independent of
// the task-level retry loop layered on top by the worker.
type HTTPOptions struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// DefaultHTTPOptions returns options with sensible defaults.
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:       60 * time.Second,
		RetryAttempts: 5,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// HTTPClient fetches publicly readable objects with plain GETs against a
// base URL, e.g. https://storage.googleapis.com/<bucket>/.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	opts    HTTPOptions
}

// NewHTTPClient creates an HTTP transfer client rooted at baseURL.
func NewHTTPClient(baseURL string, opts HTTPOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts = DefaultHTTPOptions()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: opts.Timeout,
		},
		opts: opts,
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, key, localPath string) error {
	reqURL := c.baseURL + encodeKey(key)

	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
		}

		err := c.fetchOnce(ctx, reqURL, localPath)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("fetch %s failed after %d attempts: %w", key, c.opts.RetryAttempts+1, lastErr)
}

func (c *HTTPClient) fetchOnce(ctx context.Context, reqURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &transientError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, reqURL)
	}
	if retriableStatus(resp.StatusCode) {
		return &transientError{fmt.Errorf("status %d %s", resp.StatusCode, resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d %s", resp.StatusCode, resp.Status)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}

	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(f, resp.Body, buf); err != nil {
		f.Close()
		return &transientError{fmt.Errorf("download body: %w", err)}
	}

	return f.Close()
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("base URL not reachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("base URL returned %d %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// backoff waits an exponentially increasing delay before the next attempt.
func (c *HTTPClient) backoff(ctx context.Context, attempt int) error {
	delay := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// encodeKey percent-encodes each path segment, keeping the separator.
func encodeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// retriableStatus reports whether a status code is worth retrying.
func retriableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
