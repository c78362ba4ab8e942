package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

// TransitionOutcome tells the caller what a transition attempt did.
type TransitionOutcome int

const (
	// OutcomeApplied means the new state and its event were persisted.
	OutcomeApplied TransitionOutcome = iota
	// OutcomeUnchanged means the charge was already in the target status. Nothing was written.
	OutcomeUnchanged
	// OutcomeConflict means another writer moved the charge first. Nothing was written.
	OutcomeConflict
)

func (o TransitionOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeConflict:
		return "conflict"
	}
	return "unknown"
}

type TransitionResult struct {
	Outcome TransitionOutcome
	Event   *domain.ChargeEvent
}

func (r TransitionResult) Applied() bool    { return r.Outcome == OutcomeApplied }
func (r TransitionResult) Conflicted() bool { return r.Outcome == OutcomeConflict }

// Mutation changes fields of a charge copy before it is written alongside a transition.
type Mutation func(charge *domain.Charge) error

// ChargeStateMachine is the only writer of charge status. Every write is checked
// against the version the caller loaded.
type ChargeStateMachine struct {
	charges application.ChargeRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewChargeStateMachine(charges application.ChargeRepository, logger *slog.Logger) *ChargeStateMachine {
	return &ChargeStateMachine{
		charges: charges,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Transition moves charge to target. On success charge is updated in place, including its version.
func (m *ChargeStateMachine) Transition(
	ctx context.Context,
	charge *domain.Charge,
	target domain.ChargeStatus,
	gatewayEventTime *time.Time,
) (TransitionResult, error) {
	return m.TransitionWith(ctx, charge, target, gatewayEventTime, nil)
}

// TransitionWith moves charge to target and applies mutate in the same versioned write.
// When target equals the current status and mutate is nil nothing is written; with a
// mutation the fields are persisted without an event.
func (m *ChargeStateMachine) TransitionWith(
	ctx context.Context,
	charge *domain.Charge,
	target domain.ChargeStatus,
	gatewayEventTime *time.Time,
	mutate Mutation,
) (TransitionResult, error) {
	sameStatus := charge.Status == target
	if sameStatus && mutate == nil {
		return TransitionResult{Outcome: OutcomeUnchanged}, nil
	}
	if !sameStatus && !charge.Status.CanTransitionTo(target) {
		return TransitionResult{}, domain.NewIllegalStateTransitionError(charge.Status, target)
	}

	next := charge.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return TransitionResult{}, err
		}
	}

	now := m.now()
	next.Status = target
	next.Version = charge.Version + 1
	next.UpdatedAt = now

	var event *domain.ChargeEvent
	if !sameStatus {
		event = &domain.ChargeEvent{
			ChargeID:         charge.ID,
			Status:           target,
			CreatedAt:        now,
			GatewayEventTime: gatewayEventTime,
		}
	}

	ok, err := m.charges.UpdateWithVersion(ctx, next, charge.Version, event)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("persist transition %s -> %s: %w", charge.Status, target, err)
	}
	if !ok {
		m.logger.DebugContext(ctx, "transition lost version race",
			"charge_id", charge.ExternalID,
			"status", charge.Status,
			"target", target,
			"version", charge.Version,
		)
		return TransitionResult{Outcome: OutcomeConflict}, nil
	}

	*charge = *next
	if event != nil {
		m.logger.InfoContext(ctx, "charge transitioned",
			"charge_id", charge.ExternalID,
			"status", target,
			"version", charge.Version,
		)
	}
	return TransitionResult{Outcome: OutcomeApplied, Event: event}, nil
}

// Mutate persists field changes without a status change.
func (m *ChargeStateMachine) Mutate(ctx context.Context, charge *domain.Charge, mutate Mutation) (TransitionResult, error) {
	return m.TransitionWith(ctx, charge, charge.Status, nil, mutate)
}

// Advance walks charge along a chain of statuses, stopping at the first step that is not applied.
func (m *ChargeStateMachine) Advance(ctx context.Context, charge *domain.Charge, path ...domain.ChargeStatus) (TransitionResult, error) {
	result := TransitionResult{Outcome: OutcomeUnchanged}
	for _, status := range path {
		r, err := m.Transition(ctx, charge, status, nil)
		if err != nil {
			return r, err
		}
		if r.Conflicted() {
			return r, nil
		}
		if r.Applied() {
			result = r
		}
	}
	return result, nil
}
