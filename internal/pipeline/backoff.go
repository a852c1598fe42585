package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/store"
)

// Backoff retries transient store failures with exponential delay up to a
// configured attempt ceiling. Non-transient errors fail immediately.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

func (b Backoff) Retry(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := b.Base
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !store.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("transient failure, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
