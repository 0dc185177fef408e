// Package datasette provides the HTTP client for the remote data service
// that publishes the register's tables. Tables are fetched either as
// streamed CSV exports or through the service's SQL query endpoint.
package datasette

import (
	"context"
	"net/http"
	"time"

	"github.com/openplanning/dupaudit/pkg/constants"
	"github.com/openplanning/dupaudit/pkg/errors"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// DefaultBaseURL is the public instance of the data service.
const DefaultBaseURL = "https://datasette.planning.data.gov.uk"

// RetryPolicy controls how fetches are retried. It is passed explicitly
// rather than held as process-wide state so call sites can differ.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration

	// MaxBackoff caps the doubling.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the standard bounded retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.MaxRetries,
		Backoff:     constants.RetryBackoff,
		MaxBackoff:  constants.MaxRetryBackoff,
	}
}

// Client fetches tables from a datasette-style data service.
type Client struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: constants.StreamFetchTimeout},
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TableURL builds the streamed CSV export URL for a table in a database.
func (c *Client) TableURL(db, table string) string {
	return c.baseURL + "/" + db + "/" + table + ".csv?_stream=on"
}

// FetchCSV downloads a CSV export and decodes it into a table. source is
// the logical name used in errors and logs, url the full export URL.
// Transient failures are retried per the client's policy; responses in
// the 4xx range are not.
func (c *Client) FetchCSV(ctx context.Context, source, url string) (*tabular.Table, error) {
	var lastErr error

	backoff := c.retry.Backoff
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			logging.FromContext(ctx).Debug().
				Str("source", source).
				Int("attempt", attempt).
				Msg("retrying fetch")
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}

		table, err := c.fetchCSVOnce(ctx, source, url)
		if err == nil {
			return table, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			break
		}
	}

	return nil, lastErr
}

// fetchCSVOnce performs a single fetch attempt.
func (c *Client) fetchCSVOnce(ctx context.Context, source, url string) (*tabular.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapFetch(source, url, 0, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapFetch(source, url, 0, ctx.Err())
		}
		return nil, errors.WrapFetch(source, url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError(source, url, resp.StatusCode,
			errors.New("unexpected status "+resp.Status))
	}

	table, err := tabular.ReadCSV(source, resp.Body)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug().
		Str("source", source).
		Int("rows", table.Len()).
		Msg("fetched table")
	return table, nil
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.ErrCanceled
	case <-timer.C:
		return nil
	}
}
