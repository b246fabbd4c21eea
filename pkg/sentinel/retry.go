package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	// backoffMultiplier is the exponential backoff multiplier for retry attempts
	backoffMultiplier = 2.0
)

// applyJitter applies symmetric jitter to a duration.
//
// With jitterFactor=0.2 and duration=10s, the result ranges from 8s to 12s.
// Returns the original duration if jitterFactor is 0 or negative.
func applyJitter(duration time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return duration
	}

	//nolint:gosec // Using non-cryptographic random for jitter is acceptable
	multiplier := 1.0 + (rand.Float64()*2.0-1.0)*jitterFactor
	return time.Duration(float64(duration) * multiplier)
}

// RetryPolicy controls how sink operations are retried
type RetryPolicy struct {
	MaxRetries          int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	BackoffJitterFactor float64
}

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          3,
		InitialBackoff:      time.Second,
		MaxBackoff:          30 * time.Second,
		BackoffJitterFactor: 0.2,
	}
}

// Do executes an operation with exponential backoff retry logic
func (r RetryPolicy) Do(
	ctx context.Context,
	operation func() error,
	shouldRetry func(error) bool,
	operationName string,
	logger *slog.Logger,
) error {
	var lastErr error
	backoff := r.InitialBackoff

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			actualBackoff := applyJitter(backoff, r.BackoffJitterFactor)

			logger.Info(fmt.Sprintf("retrying %s after backoff", operationName),
				"attempt", attempt,
				"backoffSeconds", actualBackoff.Seconds())

			select {
			case <-time.After(actualBackoff):
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					logger.Warn(fmt.Sprintf("%s operation timed out", operationName), "error", ctx.Err())
				}
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * backoffMultiplier)
			if r.MaxBackoff > 0 && backoff > r.MaxBackoff {
				backoff = r.MaxBackoff
			}
		}

		err := operation()
		if err == nil {
			logger.Debug(fmt.Sprintf("%s succeeded", operationName), "attempt", attempt)
			return nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			logger.Error(fmt.Sprintf("permanent error, not retrying %s", operationName), "error", err)
			return fmt.Errorf("permanent error in %s: %w", operationName, err)
		}

		lastErr = err

		logger.Warn(fmt.Sprintf("transient error, will retry %s", operationName),
			"attempt", attempt,
			"error", err)
	}

	return fmt.Errorf("max retries (%d) exceeded for %s: %w", r.MaxRetries, operationName, lastErr)
}

// IsPermanentError determines if an error is permanent or transient
//
// Permanent errors are configuration or permission issues that won't be fixed by retrying:
// - NoSuchBucket: Target bucket doesn't exist
// - InvalidAccessKeyId: Wrong or invalid credentials
// - AccessDenied: Valid credentials but insufficient permissions
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}

	// SDK v2 wraps errors in smithy OperationError, which doesn't properly
	// implement error wrapping for specific types.
	errStr := strings.ToLower(err.Error())
	permanentPatterns := []string{
		"nosuchbucket",
		"invalidaccesskeyid",
		"accessdenied",
	}

	for _, pattern := range permanentPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
