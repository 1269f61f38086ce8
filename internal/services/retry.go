package services

import (
	"context"
	"time"
)

// RetryPolicy bounds automatic retries of transient failures.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy matches the pipeline default: three attempts with
// exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: time.Second}
}

// Do runs op, retrying only failures tagged ErrTransient. The backoff doubles
// between attempts. Cancellation interrupts the wait and returns the context
// error wrapped as ErrCancelled.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Classify(ctxErr)
		}
		err = op()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Classify(ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}
