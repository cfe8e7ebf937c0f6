// Package retry provides bounded exponential backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps every delay.
	MaxBackoff time.Duration
	// Multiplier grows the delay after each failed attempt.
	Multiplier float64
	// JitterFraction is the fraction of the delay used for jitter (0.0-1.0).
	JitterFraction float64
}

// DefaultConfig returns the defaults used against the video site.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// None returns a config that performs exactly one attempt.
func None() Config {
	return Config{MaxRetries: 0, Multiplier: 1}
}

// ErrorClassifier reports whether an error may succeed on a later attempt.
type ErrorClassifier func(error) bool

// ErrInvalidURL is never retried.
var ErrInvalidURL = errors.New("invalid url")

// permanentError marks an error that must not be retried regardless of classifier.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable is the default classifier.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrInvalidURL) {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

// Do runs fn until it succeeds, the classifier rejects the error, the context
// ends, or MaxRetries is exhausted.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classifier(err) {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		sleep := backoff + jitter(backoff, cfg.JitterFraction)
		if cfg.MaxBackoff > 0 && sleep > cfg.MaxBackoff {
			sleep = cfg.MaxBackoff
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	if cfg.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	span := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * span)
}
