package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/policy"
)

// CapturePoller is the time-based half of the capture pipeline. It re-enqueues charges that
// should be moving towards capture but have sat idle past the grace period, which covers
// lost queue messages and enqueue failures.
type CapturePoller struct {
	charges     application.ChargeRepository
	queue       application.CaptureQueue
	retries     *policy.CaptureRetryPolicy
	interval    time.Duration
	gracePeriod time.Duration
	batchSize   int
	logger      *slog.Logger
	now         func() time.Time
}

func NewCapturePoller(
	charges application.ChargeRepository,
	queue application.CaptureQueue,
	retries *policy.CaptureRetryPolicy,
	interval time.Duration,
	gracePeriod time.Duration,
	batchSize int,
	logger *slog.Logger,
) *CapturePoller {
	return &CapturePoller{
		charges:     charges,
		queue:       queue,
		retries:     retries,
		interval:    interval,
		gracePeriod: gracePeriod,
		batchSize:   batchSize,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (p *CapturePoller) Start(ctx context.Context) {
	runEvery(ctx, "capture poller", p.interval, p.logger, func(ctx context.Context) error {
		_, err := p.Poll(ctx)
		return err
	})
}

// Poll enqueues one batch of idle capture candidates and returns how many were enqueued.
// A charge waiting out a retry backoff is enqueued with the remainder of its delay.
func (p *CapturePoller) Poll(ctx context.Context) (int, error) {
	now := p.now()
	charges, err := p.charges.FindCaptureCandidates(ctx, now.Add(-p.gracePeriod), p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("find capture candidates: %w", err)
	}

	enqueued := 0
	for _, charge := range charges {
		var delay time.Duration
		if charge.Status == domain.StatusCaptureApprovedRetry {
			due := charge.UpdatedAt.Add(p.retries.Backoff(charge.CaptureRetryCount))
			if due.After(now) {
				delay = due.Sub(now)
			}
		}

		job := domain.CaptureJob{
			ChargeExternalID: charge.ExternalID,
			OperationKey:     "poll",
			EnqueuedAt:       now,
		}
		if err := p.queue.Enqueue(ctx, job, delay); err != nil {
			p.logger.ErrorContext(ctx, "failed to enqueue capture candidate",
				"charge_id", charge.ExternalID,
				"error", err,
			)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		p.logger.InfoContext(ctx, "re-enqueued idle capture candidates", "count", enqueued)
	}
	return enqueued, nil
}
