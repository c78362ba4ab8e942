package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sync/errgroup"
)

type CaptureProcessor interface {
	Process(ctx context.Context, job domain.CaptureJob) (services.ProcessResult, error)
}

// CaptureWorker runs a fixed pool of consumers over the capture queue. Every received
// job is acknowledged once processed, whatever the result: retries travel as new jobs.
type CaptureWorker struct {
	queue     application.CaptureQueue
	processor CaptureProcessor
	poolSize  int
	logger    *slog.Logger
}

func NewCaptureWorker(
	queue application.CaptureQueue,
	processor CaptureProcessor,
	poolSize int,
	logger *slog.Logger,
) *CaptureWorker {
	if poolSize < 1 {
		poolSize = 1
	}
	return &CaptureWorker{
		queue:     queue,
		processor: processor,
		poolSize:  poolSize,
		logger:    logger,
	}
}

// Start blocks until ctx is done or the queue is closed.
func (w *CaptureWorker) Start(ctx context.Context) error {
	w.logger.Info("capture worker started", "pool_size", w.poolSize)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.poolSize; i++ {
		consumer := i
		g.Go(func() error {
			return w.consume(ctx, consumer)
		})
	}

	err := g.Wait()
	w.logger.Info("capture worker stopping")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *CaptureWorker) consume(ctx context.Context, consumer int) error {
	for {
		delivery, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("consumer %d: receive: %w", consumer, err)
		}
		w.handle(ctx, delivery)
	}
}

func (w *CaptureWorker) handle(ctx context.Context, delivery application.Delivery) {
	job := delivery.Job()
	start := time.Now()

	result, err := w.processor.Process(ctx, job)
	if err != nil {
		category := application.CategorizeError(err)
		w.logger.ErrorContext(ctx, "capture job failed",
			"charge_id", job.ChargeExternalID,
			"operation", job.OperationKey,
			"category", category,
			"retryable", application.IsRetryable(err),
			"error", err,
		)
		failureCounter(category).Inc()
	} else {
		w.logger.DebugContext(ctx, "capture job processed",
			"charge_id", job.ChargeExternalID,
			"result", result.String(),
			"duration", time.Since(start),
		)
		resultCounter(result.String()).Inc()
	}

	if err := delivery.Ack(ctx); err != nil {
		w.logger.ErrorContext(ctx, "failed to acknowledge capture job",
			"charge_id", job.ChargeExternalID,
			"error", err,
		)
	}
}

func resultCounter(result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`capture_jobs_total{result=%q}`, result))
}

// failureCounter counts failed jobs by error category.
func failureCounter(category application.ErrorCategory) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`capture_jobs_total{result="error",category=%q}`, category))
}
