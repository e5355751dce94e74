package crawler

import (
	"context"
	"errors"
	"net"
	"time"
)

// RetryPolicy runs one fetch attempt function until it succeeds, the
// policy gives up or ctx is done. Each attempt acquires its own politeness
// slot, so retries are paced like any other request.
type RetryPolicy interface {
	Do(ctx context.Context, attempt func(ctx context.Context) error) error
}

// NoRetry runs the attempt exactly once.
type NoRetry struct{}

// Do implements RetryPolicy.
func (NoRetry) Do(ctx context.Context, attempt func(ctx context.Context) error) error {
	return attempt(ctx)
}

// Backoff retries transient failures with exponential backoff.
type Backoff struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the wait between retries.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// Retryable decides whether an error is transient.
	// Nil means IsRetryable.
	Retryable func(error) bool
}

// DefaultBackoff returns a Backoff with two retries starting at 500ms.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Do implements RetryPolicy.
func (b Backoff) Do(ctx context.Context, attempt func(ctx context.Context) error) error {
	retryable := b.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}

	delay := b.InitialDelay
	var err error
	for i := 0; ; i++ {
		err = attempt(ctx)
		if err == nil || i >= b.MaxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
}

// IsRetryable reports whether err is a transient fetch failure:
// 429 and 5xx responses, and network errors other than cancellation.
// Client errors (4xx) and parse failures are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedPage) || errors.Is(err, ErrDisallowed) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
