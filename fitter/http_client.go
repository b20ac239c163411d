package fitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout bounds a single dataset request.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchAttempts is how many times a transient failure is tried.
	DefaultFetchAttempts = 3

	defaultRetryDelay = 500 * time.Millisecond

	// maxDatasetBytes caps downloaded datasets at 50 MB.
	maxDatasetBytes = 50 << 20
)

// FetchOption configures FetchDataset.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout  time.Duration
	attempts int
	delay    time.Duration
	client   *http.Client
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.timeout = d }
}

// WithAttempts sets how many times a transient failure is tried.
func WithAttempts(n int) FetchOption {
	return func(c *fetchConfig) { c.attempts = n }
}

// WithRetryDelay sets the first retry delay. Each further retry doubles it.
func WithRetryDelay(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.delay = d }
}

// WithHTTPClient replaces the default client; WithTimeout is then ignored.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) { c.client = client }
}

// statusError reports a non-200 response.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.url, e.code, http.StatusText(e.code))
}

// permanent reports whether retrying err cannot help. Client errors other
// than timeouts and rate limits are permanent.
func permanent(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.code >= 400 && se.code < 500
}

// FetchDataset downloads a JSON or CSV dataset from url. Network errors and
// 5xx responses are retried with doubling delays; parse errors and other
// 4xx responses fail at once.
func FetchDataset(ctx context.Context, url string, opts ...FetchOption) (*Dataset, error) {
	if url == "" {
		return nil, errors.New("fetch dataset: URL is empty")
	}

	cfg := fetchConfig{
		timeout:  DefaultFetchTimeout,
		attempts: DefaultFetchAttempts,
		delay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.attempts = max(cfg.attempts, 1)
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	delay := cfg.delay
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		body, err := getDataset(ctx, cfg.client, url)
		if err == nil {
			ds, perr := ParseDataset(body)
			if perr != nil {
				return nil, fmt.Errorf("fetch dataset: %w", perr)
			}
			return ds, nil
		}
		if permanent(err) {
			return nil, fmt.Errorf("fetch dataset: %w", err)
		}
		lastErr = err
		if attempt == cfg.attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("fetch dataset: %w", ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, fmt.Errorf("fetch dataset: all %d attempts failed: %w", cfg.attempts, lastErr)
}

func getDataset(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/csv")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &statusError{url: url, code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(body) > maxDatasetBytes {
		return nil, &statusError{url: url, code: http.StatusRequestEntityTooLarge}
	}
	return body, nil
}
