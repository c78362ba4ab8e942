package worker

import (
	"context"
	"log/slog"
	"time"
)

type ChargeExpirer interface {
	ExpireStale(ctx context.Context, window time.Duration, limit int) (int, error)
}

// ExpirationWorker moves charges abandoned before capture to EXPIRED.
type ExpirationWorker struct {
	expirer   ChargeExpirer
	window    time.Duration
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewExpirationWorker(
	expirer ChargeExpirer,
	window time.Duration,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		expirer:   expirer,
		window:    window,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	runEvery(ctx, "expiration worker", w.interval, w.logger, w.processExpirations)
}

// processExpirations drains full batches so a backlog clears within one run. Shutdown
// stops the drain between batches; the rest waits for the next run.
func (w *ExpirationWorker) processExpirations(ctx context.Context) error {
	total := 0
	for {
		n, err := w.expirer.ExpireStale(ctx, w.window, w.batchSize)
		if err != nil {
			return err
		}
		total += n
		if n < w.batchSize || ctx.Err() != nil {
			break
		}
	}

	if total > 0 {
		w.logger.InfoContext(ctx, "processed expiration check", "marked_expired", total)
	}
	return nil
}
