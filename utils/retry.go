package utils

import (
	"errors"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Factor multiplies the delay after every failed attempt. Zero means 2.
	Factor   float64
	Logger   *Logger
	Shutdown *Shutdown
	// Permanent stops retrying early for errors it reports true for.
	Permanent func(error) bool

	// sleep is swapped in tests.
	sleep func(time.Duration) error
}

// Do executes fn with exponential back-off retry logic.
func (r *RetryConfig) Do(operationName string, fn func() error) error {
	_, err := Retry(r, operationName, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Retry runs fn until it succeeds or MaxAttempts is exhausted, sleeping
// BaseDelay, BaseDelay*Factor, ... between attempts. The last error is
// wrapped into the returned error. A shutdown during a back-off sleep stops
// retrying and joins ErrShutdown to the last error.
func Retry[T any](r *RetryConfig, operationName string, fn func() (T, error)) (T, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	factor := r.Factor
	if factor <= 0 {
		factor = 2
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = r.Shutdown.Sleep
	}

	var zero T
	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if r.Permanent != nil && r.Permanent(err) {
			return zero, fmt.Errorf("%s failed permanently on attempt %d: %w", operationName, attempt, err)
		}

		if attempt < attempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			if serr := sleep(delay); serr != nil {
				return zero, fmt.Errorf("%s interrupted after %d attempts: %w",
					operationName, attempt, errors.Join(lastErr, serr))
			}
			delay = time.Duration(float64(delay) * factor)
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}
