package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tap-appstore/internal/model"
)

// Retry runs fn up to cfg.MaxAttempts times with a fixed wait in between.
// Permanent errors and a cancelled ctx end the loop at once.
func Retry(ctx context.Context, cfg model.RetryConfig, logger *slog.Logger, fn func(ctx context.Context, attempt int) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Info("starting sync attempt", "attempt", attempt, "max_attempts", attempts)
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("sync attempt failed, retrying",
			"attempt", attempt,
			"backoff", cfg.Backoff,
			"error", err,
		)
		if cfg.Backoff > 0 {
			timer := time.NewTimer(cfg.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("sync failed after %d attempts: %w", attempts, err)
}
