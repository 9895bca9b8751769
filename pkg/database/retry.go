package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

// ErrUnavailable is returned after bounded retries of a transient store
// failure are exhausted. It is deliberately distinct from the domain error
// taxonomy so callers can map it to a generic unavailable response.
var ErrUnavailable = errors.New("database unavailable")

const (
	maxAttempts  = 3
	baseBackoff  = 50 * time.Millisecond
	maxJitterDiv = 2
)

// OnRetry, when set, observes every retried attempt. The server entrypoint
// wires it to the retry counter.
var OnRetry func()

// IsTransient reports whether err is a transient store failure worth
// retrying: connection loss, serialization failures, deadlocks, and
// resource exhaustion. Constraint violations and domain errors are not
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection exception
			return true
		case "40": // serialization_failure, deadlock_detected
			return true
		case "53": // insufficient resources
			return true
		case "57": // operator intervention (shutdown, crash)
			return true
		}
	}

	return false
}

// WithRetry runs fn, retrying transient failures up to maxAttempts with
// jittered backoff. Non-transient errors surface immediately; exhausted
// retries surface as ErrUnavailable wrapping the last failure.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if OnRetry != nil {
				OnRetry()
			}
			backoff := baseBackoff << (attempt - 1)
			backoff += time.Duration(rand.Int63n(int64(backoff / maxJitterDiv)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}

	return errors.Join(ErrUnavailable, lastErr)
}
