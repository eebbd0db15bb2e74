package store

import (
	"context"
	"time"
)

// WithTimeout runs op and waits at most d for it to finish.
//
// op receives a context detached from the caller's cancellation: when the
// timer fires, WithTimeout returns ErrTimeout but the in-flight request keeps
// running and its result is discarded. Cancellation of ctx itself still ends
// the wait with ctx.Err(). d <= 0 disables the bound.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- op(context.WithoutCancel(ctx))
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Value is WithTimeout for operations that produce a result.
func Value[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := WithTimeout(ctx, d, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
