package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func (s *Store) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	maxRetries := s.retries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := s.backoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		s.logger.Warn("query retry", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
