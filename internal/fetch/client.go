// Package fetch provides the paced, retrying HTTP client used for listing
// pages and document downloads.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/retry"
)

const (
	defaultUserAgent      = "regcrawl/1.0 (+https://github.com/regwatch/regcrawl)"
	defaultRequestTimeout = 30 * time.Second
	defaultRequestDelay   = 200 * time.Millisecond
	defaultDownloadDelay  = 500 * time.Millisecond
	defaultMaxAttempts    = 3
	defaultRetryDelay     = time.Second

	// maxResponseBodyBytes limits the size of fetched responses.
	maxResponseBodyBytes = 50 * 1024 * 1024 // 50 MB
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// retryableStatus reports whether a status code is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Config holds fetch client configuration.
type Config struct {
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RequestDelay is the minimum delay between any two network fetches.
	// It is a pacing constraint on the single fetch path, not a lock.
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"`
	// DownloadDelay paces document downloads, which are heavier than
	// listing page fetches and get a longer gap.
	DownloadDelay time.Duration `mapstructure:"download_delay" yaml:"download_delay"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestDelay <= 0 {
		c.RequestDelay = defaultRequestDelay
	}
	if c.DownloadDelay <= 0 {
		c.DownloadDelay = defaultDownloadDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// Client fetches pages and documents with rate limiting and bounded,
// linearly backed-off retries.
type Client struct {
	httpClient      *http.Client
	pageLimiter     *rate.Limiter
	downloadLimiter *rate.Limiter
	policy          retry.Config
	userAgent       string
	log             logger.Interface
}

// New creates a fetch client.
func New(cfg Config, log logger.Interface) *Client {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNoOp()
	}

	return &Client{
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		pageLimiter:     rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		downloadLimiter: rate.NewLimiter(rate.Every(cfg.DownloadDelay), 1),
		policy: retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
			IsRetryable: isRetryable,
		},
		userAgent: cfg.UserAgent,
		log:       log.WithComponent("fetch"),
	}
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.Code)
	}
	return retry.DefaultIsRetryable(err)
}

// Page fetches a URL and returns the response body as text.
func (c *Client) Page(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, c.pageLimiter)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Download fetches a URL and returns the raw response body.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url, c.downloadLimiter)
}

func (c *Client) get(ctx context.Context, url string, limiter *rate.Limiter) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, c.policy, func() error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return &StatusError{URL: url, Code: resp.StatusCode}
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	c.log.Debug("fetched", "url", url, "bytes", len(body))
	return body, nil
}
