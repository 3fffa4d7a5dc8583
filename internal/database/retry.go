package database

import (
	"context"
	"log/slog"
	"time"
	"vipbot/lib/sl"

	"github.com/sethvargo/go-retry"
)

const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

// withRetry runs fn up to retryAttempts+1 times with exponential backoff.
// Context errors are returned as they are.
func withRetry(ctx context.Context, log *slog.Logger, op string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(retryAttempts, retry.NewExponential(retryBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		log.Warn(op,
			slog.Int("attempt", attempt),
			sl.Err(err))
		return retry.RetryableError(err)
	})
}
