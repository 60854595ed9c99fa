// Package fetch is the resource fetch boundary: it retrieves manifests and
// segment bytes by URL, optionally restricted to a byte range.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"hlsengine/internal/logger"
	"hlsengine/internal/models"
)

// Fetcher retrieves resources by URL.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	// FetchBytes fetches url, or only the given inclusive byte range of it
	// when r is non-nil.
	FetchBytes(ctx context.Context, url string, r *models.ByteRange) ([]byte, error)
}

// StatusError is returned for a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Options configures a Client.
type Options struct {
	UserAgent string
	// Attempts is the number of tries per request; values below 1 mean 1.
	Attempts   int
	RetryDelay time.Duration
	// ResponseHeaderTimeout bounds the wait for response headers. Zero means 10s.
	ResponseHeaderTimeout time.Duration
	// OnTransfer, if set, is called after every successful network transfer
	// with the body size and the time from request to last byte.
	OnTransfer func(n int64, d time.Duration)
}

// Client is an HTTP Fetcher. Concurrent FetchText calls for the same URL
// share one request.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	opts       Options
	group      singleflight.Group
}

// NewClient creates a new HTTP client.
func NewClient(log logger.Logger, opts Options) *Client {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.ResponseHeaderTimeout

	return &Client{
		httpClient: &http.Client{Transport: transport},
		logger:     log,
		opts:       opts,
	}
}

// FetchText implements Fetcher.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	ch := c.group.DoChan(url, func() (interface{}, error) {
		data, err := c.fetch(context.WithoutCancel(ctx), url, nil)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// FetchBytes implements Fetcher.
func (c *Client) FetchBytes(ctx context.Context, url string, r *models.ByteRange) ([]byte, error) {
	return c.fetch(ctx, url, r)
}

func (c *Client) fetch(ctx context.Context, url string, r *models.ByteRange) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		data, err := c.do(ctx, url, r)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) || attempt == c.opts.Attempts {
			break
		}
		c.logger.Warnf("Fetch attempt %d/%d for %s failed: %v", attempt, c.opts.Attempts, url, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.RetryDelay):
		}
	}
	if c.opts.Attempts > 1 {
		return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", url, c.opts.Attempts, lastErr)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, r *models.ByteRange) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if r != nil {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.Start, r.End))
	}

	c.logger.Debugf("Fetching %s (range %v)", url, r)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	if c.opts.OnTransfer != nil {
		c.opts.OnTransfer(int64(len(data)), time.Since(start))
	}

	// The server ignored the Range header and sent the whole resource.
	if r != nil && resp.StatusCode == http.StatusOK {
		if r.End >= int64(len(data)) {
			return nil, fmt.Errorf("range %d-%d beyond %d byte body of %s", r.Start, r.End, len(data), url)
		}
		data = data[r.Start : r.End+1]
	}
	return data, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
