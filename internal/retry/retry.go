// Package retry provides a retry policy for transient failures with
// linearly increasing backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMaxAttemptsExceeded is returned when all attempts have failed.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Config is an explicit retry policy value object.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the base delay; attempt n waits n*Delay before retrying.
	Delay time.Duration
	// IsRetryable decides whether an error is worth another attempt.
	IsRetryable func(error) bool
}

const (
	defaultMaxAttempts = 3
	defaultDelay       = time.Second
)

// DefaultConfig returns the default policy: three attempts, one-second base
// delay, retrying on transient network failures.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaultMaxAttempts,
		Delay:       defaultDelay,
		IsRetryable: DefaultIsRetryable,
	}
}

// DefaultIsRetryable reports whether an error looks like a transient
// network or timeout failure.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
		"unexpected eof",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// Do executes fn under the given policy. The backoff between attempts grows
// linearly: Delay, 2*Delay, 3*Delay, and so on. It honours context
// cancellation both before each attempt and while waiting.
func Do(ctx context.Context, config Config, fn func() error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.Delay <= 0 {
		config.Delay = defaultDelay
	}
	if config.IsRetryable == nil {
		config.IsRetryable = DefaultIsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !config.IsRetryable(err) {
			return err
		}

		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			case <-time.After(time.Duration(attempt) * config.Delay):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, config.MaxAttempts, lastErr)
}
