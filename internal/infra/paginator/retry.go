package paginator

import (
	"context"
	"errors"
	"time"
)

// errRetryable marks a reply the remote asked us to repeat ("not ready yet").
var errRetryable = errors.New("remote not ready")

// RetryPolicy bounds how often one batch is re-requested.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is the wait before the 2nd, 3rd, ... attempt; the last entry repeats.
	Backoff []time.Duration
}

// DefaultRetryPolicy retries a "not ready" batch twice, two seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{2 * time.Second}}
}

func (p RetryPolicy) wait(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt-1 < len(p.Backoff) {
		return p.Backoff[attempt-1]
	}
	return p.Backoff[len(p.Backoff)-1]
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out.
// fn receives the 1-based attempt number.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.wait(attempt - 1)):
			}
		}
		err = fn(attempt)
		if err == nil || !errors.Is(err, errRetryable) {
			return err
		}
	}
	return err
}
