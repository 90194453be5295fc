package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when a remote backend cannot be reached.
var ErrUnavailable = errors.New("cache backend unavailable")

// Backoff controls how remote backends retry transient failures. The first
// retry waits Delay; each following retry waits twice as long.
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

// DefaultBackoff is used by [NewRedisCache].
var DefaultBackoff = Backoff{Attempts: 3, Delay: 100 * time.Millisecond}

// transientError marks a failure that is worth another attempt.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. A nil error stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err, or anything it wraps, was marked with
// [Transient].
func IsTransient(err error) bool {
	var te transientError
	return errors.As(err, &te)
}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// are used up, or ctx is done. The last error is returned.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay

	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return err
}

// classify turns network failures into transient ErrUnavailable errors.
// A redis miss passes through unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return err
}
