package api

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// sleep waits for d or until ctx is done. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls op up to maxAttempts times while the error is retryable,
// waiting baseDelay * 2^(attempt-1) between attempts. The last error is
// returned once attempts run out or a non-retryable error occurs.
func Retry[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) (T, error)) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result  T
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, lastErr = op(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !IsRetryable(lastErr) || attempt == maxAttempts {
			return result, lastErr
		}

		delay := baseDelay * time.Duration(1<<(attempt-1))
		if err := sleep(ctx, delay); err != nil {
			return result, lastErr
		}
	}
	return result, lastErr
}
