package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/policy"
)

// CaptureService approves delayed-capture charges.
type CaptureService struct {
	charges application.ChargeRepository
	queue   application.CaptureQueue
	machine *ChargeStateMachine
	logger  *slog.Logger
}

func NewCaptureService(
	charges application.ChargeRepository,
	queue application.CaptureQueue,
	machine *ChargeStateMachine,
	logger *slog.Logger,
) *CaptureService {
	return &CaptureService{
		charges: charges,
		queue:   queue,
		machine: machine,
		logger:  logger,
	}
}

// Approve moves an authorised charge to CAPTURE_APPROVED and queues it.
// Approving a charge that is already on its way to capture returns it unchanged.
func (s *CaptureService) Approve(ctx context.Context, externalID string) (*domain.Charge, error) {
	charge, err := loadCharge(ctx, s.charges, externalID)
	if err != nil {
		return nil, err
	}

	switch charge.Status {
	case domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry,
		domain.StatusCaptureSubmitted, domain.StatusCaptured:
		return charge, nil
	case domain.StatusAuthSuccess:
	default:
		return nil, application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "capture"))
	}

	res, err := s.machine.Transition(ctx, charge, domain.StatusCaptureApproved, nil)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Conflicted() {
		return nil, application.NewRequestProcessingError()
	}

	job := domain.CaptureJob{
		ChargeExternalID: charge.ExternalID,
		OperationKey:     "approve",
		EnqueuedAt:       time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job, 0); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue capture, poller will pick it up",
			"charge_id", charge.ExternalID,
			"error", err,
		)
	}
	return charge, nil
}

// ProcessResult is what happened to one capture job.
type ProcessResult int

const (
	ResultSubmitted ProcessResult = iota
	ResultDropped
	ResultRetrying
	ResultFailed
)

func (r ProcessResult) String() string {
	switch r {
	case ResultSubmitted:
		return "submitted"
	case ResultDropped:
		return "dropped"
	case ResultRetrying:
		return "retrying"
	case ResultFailed:
		return "failed"
	}
	return "unknown"
}

// CaptureProcessor handles a single capture job. It is safe to run any number of
// processors against the same charge: the version-checked claim written before the
// gateway call lets at most one of them reach the gateway.
type CaptureProcessor struct {
	charges      application.ChargeRepository
	accounts     application.AccountRepository
	adapters     application.AdapterResolver
	queue        application.CaptureQueue
	machine      *ChargeStateMachine
	retries      *policy.CaptureRetryPolicy
	claimTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

func NewCaptureProcessor(
	charges application.ChargeRepository,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	queue application.CaptureQueue,
	machine *ChargeStateMachine,
	retries *policy.CaptureRetryPolicy,
	claimTimeout time.Duration,
	logger *slog.Logger,
) *CaptureProcessor {
	return &CaptureProcessor{
		charges:      charges,
		accounts:     accounts,
		adapters:     adapters,
		queue:        queue,
		machine:      machine,
		retries:      retries,
		claimTimeout: claimTimeout,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Process runs one capture attempt. The returned error is reserved for storage failures;
// every gateway outcome is expressed through the result.
func (p *CaptureProcessor) Process(ctx context.Context, job domain.CaptureJob) (ProcessResult, error) {
	charge, err := loadCharge(ctx, p.charges, job.ChargeExternalID)
	if err != nil {
		if svcErr, ok := application.IsServiceError(err); ok && svcErr.Code == application.ErrCodeNotFound {
			p.logger.WarnContext(ctx, "capture job for unknown charge", "charge_id", job.ChargeExternalID)
			return ResultDropped, nil
		}
		return ResultDropped, err
	}

	if !charge.Status.IsCaptureEligible() {
		p.logger.DebugContext(ctx, "dropping stale capture job",
			"charge_id", charge.ExternalID,
			"status", charge.Status,
		)
		return ResultDropped, nil
	}
	if charge.Status == domain.StatusAuthSuccess && charge.DelayedCapture {
		p.logger.DebugContext(ctx, "charge waits for capture approval", "charge_id", charge.ExternalID)
		return ResultDropped, nil
	}

	now := p.now()
	if charge.CaptureAttemptedAt != nil && now.Sub(*charge.CaptureAttemptedAt) < p.claimTimeout {
		p.logger.DebugContext(ctx, "capture already in flight",
			"charge_id", charge.ExternalID,
			"claimed_at", *charge.CaptureAttemptedAt,
		)
		return ResultDropped, nil
	}

	account, adapter, err := loadAccount(ctx, p.accounts, p.adapters, charge.AccountID)
	if err != nil {
		return ResultDropped, err
	}

	// A stale claim means an earlier attempt died without recording its outcome.
	ambiguous := charge.CaptureAttemptedAt != nil || charge.Status == domain.StatusCaptureApprovedRetry

	claimStatus := charge.Status
	if claimStatus == domain.StatusAuthSuccess {
		claimStatus = domain.StatusCaptureApproved
	}
	res, err := p.machine.TransitionWith(ctx, charge, claimStatus, nil, func(c *domain.Charge) error {
		c.CaptureAttemptedAt = &now
		return nil
	})
	if err != nil {
		return ResultDropped, err
	}
	if res.Conflicted() {
		return ResultDropped, nil
	}

	if charge.TransactionID() == "" {
		p.logger.ErrorContext(ctx, "charge has no gateway transaction id, cannot capture", "charge_id", charge.ExternalID)
		return p.fail(ctx, charge)
	}

	if ambiguous {
		q := adapter.Query(ctx, domain.QueryRequest{
			Account:       account,
			ChargeID:      charge.ExternalID,
			TransactionID: charge.TransactionID(),
		})
		if q.Err != nil {
			p.logger.ErrorContext(ctx, "query before capture retry failed",
				"charge_id", charge.ExternalID,
				"error", q.Err,
			)
			return p.retryOrFail(ctx, charge, job)
		}
		switch q.Status {
		case domain.StatusCaptureSubmitted:
			return p.submitted(ctx, charge)
		case domain.StatusCaptured:
			return p.submitted(ctx, charge, domain.StatusCaptured)
		}
		p.logger.InfoContext(ctx, "gateway has no capture on record, retrying",
			"charge_id", charge.ExternalID,
			"provider_status", q.ProviderStatus,
		)
	}

	outcome := adapter.Capture(ctx, domain.CaptureRequest{
		Account:       account,
		ChargeID:      charge.ExternalID,
		TransactionID: charge.TransactionID(),
		Amount:        charge.TotalAmount(),
		Currency:      charge.Currency,
	})

	switch {
	case outcome.Kind == domain.OperationSubmitted:
		return p.submitted(ctx, charge)
	case outcome.Kind == domain.OperationRejected:
		p.logger.ErrorContext(ctx, "capture rejected by gateway",
			"charge_id", charge.ExternalID,
			"reason", outcome.Reason,
		)
		return p.fail(ctx, charge)
	case outcome.Err != nil && outcome.Err.IsRetryable():
		p.logger.ErrorContext(ctx, "capture outcome unknown",
			"charge_id", charge.ExternalID,
			"retry_count", charge.CaptureRetryCount,
			"error", outcome.Err,
		)
		return p.retryOrFail(ctx, charge, job)
	default:
		p.logger.ErrorContext(ctx, "gateway protocol error during capture",
			"charge_id", charge.ExternalID,
			"error", gatewayErr(outcome.Err),
		)
		return p.fail(ctx, charge)
	}
}

func (p *CaptureProcessor) submitted(ctx context.Context, charge *domain.Charge, beyond ...domain.ChargeStatus) (ProcessResult, error) {
	path := append([]domain.ChargeStatus{domain.StatusCaptureSubmitted}, beyond...)
	res, err := p.machine.Advance(ctx, charge, path...)
	if err != nil {
		return ResultDropped, err
	}
	if res.Conflicted() {
		return ResultDropped, nil
	}
	return ResultSubmitted, nil
}

func (p *CaptureProcessor) fail(ctx context.Context, charge *domain.Charge) (ProcessResult, error) {
	res, err := p.machine.Transition(ctx, charge, domain.StatusCaptureError, nil)
	if err != nil {
		return ResultDropped, err
	}
	if res.Conflicted() {
		return ResultDropped, nil
	}
	return ResultFailed, nil
}

// retryOrFail records a failed attempt on the charge and either schedules the next
// one or gives up with CAPTURE_ERROR.
func (p *CaptureProcessor) retryOrFail(ctx context.Context, charge *domain.Charge, job domain.CaptureJob) (ProcessResult, error) {
	count := charge.CaptureRetryCount + 1
	decision, err := p.retries.Decide(count)
	if err != nil {
		p.logger.ErrorContext(ctx, "retry rule failed, giving up",
			"charge_id", charge.ExternalID,
			"error", err,
		)
		decision.Retry = false
	}

	target := domain.StatusCaptureError
	if decision.Retry {
		target = domain.StatusCaptureApprovedRetry
	}

	res, err := p.machine.TransitionWith(ctx, charge, target, nil, func(c *domain.Charge) error {
		c.CaptureRetryCount = count
		c.CaptureAttemptedAt = nil
		return nil
	})
	if err != nil {
		return ResultDropped, err
	}
	if res.Conflicted() {
		return ResultDropped, nil
	}

	if !decision.Retry {
		p.logger.ErrorContext(ctx, "capture needs operator action",
			"charge_id", charge.ExternalID,
			"retry_count", count,
			"error", application.NewRetryLimitExceededError(count, nil),
		)
		return ResultFailed, nil
	}

	next := domain.CaptureJob{
		ChargeExternalID: charge.ExternalID,
		OperationKey:     fmt.Sprintf("retry-%d", count),
		EnqueuedAt:       p.now(),
	}
	if err := p.queue.Enqueue(ctx, next, decision.Delay); err != nil {
		p.logger.ErrorContext(ctx, "failed to re-enqueue capture, poller will pick it up",
			"charge_id", charge.ExternalID,
			"error", err,
		)
	}
	p.logger.WarnContext(ctx, "capture scheduled for retry",
		"charge_id", charge.ExternalID,
		"retry_count", count,
		"delay", decision.Delay,
		"previous_operation", job.OperationKey,
	)
	return ResultRetrying, nil
}
