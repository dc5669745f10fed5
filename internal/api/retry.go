package api

import (
	"context"
	"errors"
	"time"
)

// Retry runs fn up to attempts times with a fixed delay between tries,
// returning nil on the first success. A missing auth token is never worth
// retrying, and context cancellation stops the loop early. This is the one
// retry path shared by the direct check-in call, the direct check-out call
// and the sync engine.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ErrAuthMissing) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
