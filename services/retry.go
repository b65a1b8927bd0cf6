package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-exchange/observability"
)

// backoff retries transient provider failures with capped, doubling delays
type backoff struct {
	attempts int // total tries including the first
	initial  time.Duration
	max      time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// newsBackoff is the policy for NewsAPI calls
var newsBackoff = backoff{
	attempts: 4,
	initial:  100 * time.Millisecond,
	max:      5 * time.Second,
	sleep:    sleepContext,
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transientError marks a failure another attempt may clear
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error {
	return &transientError{err: err}
}

// StatusError is a non-OK provider response
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Code)
}

// checkStatus classifies an HTTP status: 429 and 5xx are transient, any
// other non-200 code is final
func checkStatus(provider string, code int) error {
	if code == http.StatusOK {
		return nil
	}
	err := &StatusError{Provider: provider, Code: code}
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return transient(err)
	}
	return err
}

// run calls fn until it succeeds, returns a final error, or the attempts run
// out. The returned error is unwrapped from its transient marker.
func (b backoff) run(ctx context.Context, op string, fn func() error) error {
	attempts := b.attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := b.initial

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		var t *transientError
		if err == nil || !errors.As(err, &t) {
			return err
		}
		if attempt == attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, t.err)
		}

		observability.Debug("transient failure, retrying",
			"operation", op,
			"attempt", attempt,
			"delay", delay,
			"error", t.err)
		if serr := b.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s cancelled between attempts: %w", op, serr)
		}
		delay *= 2
		if delay > b.max {
			delay = b.max
		}
	}
}
