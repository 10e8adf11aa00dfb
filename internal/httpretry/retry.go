// Package httpretry provides a single exponential-backoff retry envelope
// shared by the registry client and the publisher, so retry accounting
// happens in exactly one place instead of being duplicated per caller.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Budget bounds the number of attempts and the backoff schedule for one
// logical operation. Do counts only its own attempts against MaxAttempts;
// retries already made by a lower layer are not reported to it and are
// not subtracted from the budget.
type Budget struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
}

// DefaultBudget mirrors the retry shape used throughout this codebase:
// three attempts, with a 500ms base delay doubled per retry (the first
// retry waits 1s, the second 2s).
func DefaultBudget() Budget {
	return Budget{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Logger: slog.Default()}
}

// RetryableError marks an error as transient: worth retrying under a
// Budget. Network errors and 5xx responses are retryable; 4xx responses
// and parse failures are not.
type RetryableError struct{ err error }

// Retryable wraps err so the retry loop treats it as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{err: err}
}

func (e *RetryableError) Error() string { return e.err.Error() }
func (e *RetryableError) Unwrap() error { return e.err }

// IsRetryable reports whether err (or something it wraps) was marked
// Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Do runs op up to b.MaxAttempts times, sleeping with exponential backoff
// between attempts, as long as op's error is retryable. It stops early,
// without consuming another attempt, on a non-retryable error or on
// context cancellation.
func Do(ctx context.Context, b Budget, label string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * b.BaseDelay
			if b.Logger != nil {
				b.Logger.Debug("retrying", slog.String("op", label), slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", label, ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		if b.Logger != nil {
			b.Logger.Debug("attempt failed", slog.String("op", label), slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", label, b.MaxAttempts, lastErr)
}

// ClassifyStatus turns an HTTP status code into either nil (success), a
// RetryableError (5xx, should be retried), or a plain error (4xx or other,
// fatal for this attempt).
func ClassifyStatus(statusCode int, detail string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode >= 500:
		return Retryable(fmt.Errorf("server error %d: %s", statusCode, detail))
	default:
		return fmt.Errorf("status %d: %s", statusCode, detail)
	}
}

// SameOrigin reports whether two URLs share scheme, host, and port — the
// boundary redirects must stay within to be followed automatically.
func SameOrigin(a, b string) bool {
	ua, erra := parseOrigin(a)
	ub, errb := parseOrigin(b)
	return erra == nil && errb == nil && ua == ub
}

func parseOrigin(raw string) (string, error) {
	u, err := http.NewRequest(http.MethodGet, raw, nil)
	if err != nil {
		return "", err
	}
	return u.URL.Scheme + "://" + u.URL.Host, nil
}
