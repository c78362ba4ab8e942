package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

const maxNotificationAttempts = 3

// NotificationOutcome records what one parsed notification did to its charge.
type NotificationOutcome string

const (
	NotificationApplied   NotificationOutcome = "applied"
	NotificationDuplicate NotificationOutcome = "duplicate"
	NotificationStale     NotificationOutcome = "stale"
	NotificationIgnored   NotificationOutcome = "ignored"
	NotificationUnknown   NotificationOutcome = "unknown_charge"
)

// NotificationAck is the body a provider expects back once its callback was accepted.
type NotificationAck struct {
	ContentType string
	Body        []byte
	Outcomes    []NotificationOutcome
}

type NotificationIngestor struct {
	charges  application.ChargeRepository
	accounts application.AccountRepository
	adapters application.AdapterResolver
	machine  *ChargeStateMachine
	logger   *slog.Logger
}

func NewNotificationIngestor(
	charges application.ChargeRepository,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	machine *ChargeStateMachine,
	logger *slog.Logger,
) *NotificationIngestor {
	return &NotificationIngestor{
		charges:  charges,
		accounts: accounts,
		adapters: adapters,
		machine:  machine,
		logger:   logger,
	}
}

// Ingest authenticates a provider callback and applies each notification it carries.
// Anything that cannot move a charge forward is acknowledged anyway so the provider
// stops redelivering it; only authentication failures and storage errors are refused.
func (n *NotificationIngestor) Ingest(ctx context.Context, provider domain.Provider, req application.NotificationRequest) (*NotificationAck, error) {
	parser, err := n.adapters.NotificationParser(provider)
	if err != nil {
		return nil, application.NewNotFoundError(err)
	}

	notifications, err := parser.Parse(req)
	if err != nil {
		n.logger.ErrorContext(ctx, "could not parse notification",
			"provider", provider,
			"error", err,
		)
		return nil, application.NewInvalidInputError(err)
	}

	contentType, body := parser.Acknowledgement()
	ack := &NotificationAck{ContentType: contentType, Body: body}

	for _, notification := range notifications {
		outcome, err := n.handle(ctx, provider, parser, req, notification)
		if err != nil {
			return nil, err
		}
		ack.Outcomes = append(ack.Outcomes, outcome)
	}
	return ack, nil
}

func (n *NotificationIngestor) handle(
	ctx context.Context,
	provider domain.Provider,
	parser application.NotificationParser,
	req application.NotificationRequest,
	notification domain.Notification,
) (NotificationOutcome, error) {
	charge, err := n.charges.FindByTransactionID(ctx, provider, notification.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrChargeNotFound) {
			n.logger.WarnContext(ctx, "notification for unknown transaction",
				"provider", provider,
				"transaction_id", notification.TransactionID,
			)
			return NotificationUnknown, nil
		}
		return "", application.NewInternalError(err)
	}

	account, err := n.accounts.FindByID(ctx, charge.AccountID)
	if err != nil {
		return "", application.NewInternalError(err)
	}
	if err := parser.Authenticate(req, account); err != nil {
		n.logger.WarnContext(ctx, "notification failed authentication",
			"provider", provider,
			"charge_id", charge.ExternalID,
			"remote_addr", req.RemoteAddr,
			"error", err,
		)
		return "", application.NewUnauthorisedError(err)
	}

	target, ok := parser.MapStatus(notification.ProviderStatus)
	if !ok {
		n.logger.InfoContext(ctx, "notification status does not move charges",
			"provider", provider,
			"charge_id", charge.ExternalID,
			"provider_status", notification.ProviderStatus,
		)
		return NotificationIgnored, nil
	}

	return n.apply(ctx, charge, target, notification)
}

// apply moves charge to target, reloading and re-deciding after a version conflict.
func (n *NotificationIngestor) apply(ctx context.Context, charge *domain.Charge, target domain.ChargeStatus, notification domain.Notification) (NotificationOutcome, error) {
	for attempt := 0; attempt < maxNotificationAttempts; attempt++ {
		if charge.Status == target {
			return NotificationDuplicate, nil
		}
		if target.Precedes(charge.Status) {
			n.logger.InfoContext(ctx, "discarding stale notification",
				"charge_id", charge.ExternalID,
				"status", charge.Status,
				"target", target,
			)
			return NotificationStale, nil
		}

		path := notificationPath(charge.Status, target)
		if path == nil {
			n.logger.WarnContext(ctx, "notification implies an undeclared transition",
				"charge_id", charge.ExternalID,
				"status", charge.Status,
				"target", target,
			)
			return NotificationIgnored, nil
		}

		res, err := n.advance(ctx, charge, path, notification)
		if err != nil {
			return "", application.NewInternalError(err)
		}
		if !res.Conflicted() {
			return NotificationApplied, nil
		}

		latest, err := n.charges.FindByExternalID(ctx, charge.ExternalID)
		if err != nil {
			return "", application.NewInternalError(err)
		}
		charge = latest
	}

	n.logger.WarnContext(ctx, "notification kept losing version races, leaving it to reconciliation",
		"charge_id", charge.ExternalID,
		"target", target,
	)
	return NotificationIgnored, nil
}

func (n *NotificationIngestor) advance(ctx context.Context, charge *domain.Charge, path []domain.ChargeStatus, notification domain.Notification) (TransitionResult, error) {
	result := TransitionResult{Outcome: OutcomeUnchanged}
	for _, status := range path {
		r, err := n.machine.Transition(ctx, charge, status, notification.EventTime)
		if err != nil || r.Conflicted() {
			return r, err
		}
		result = r
	}
	return result, nil
}

// notificationPath returns the statuses to walk from current to target, or nil when
// target is not reachable. A capture confirmed by the gateway before the worker recorded
// its submission passes through CAPTURE_SUBMITTED.
func notificationPath(current, target domain.ChargeStatus) []domain.ChargeStatus {
	if current.CanTransitionTo(target) {
		return []domain.ChargeStatus{target}
	}
	if target == domain.StatusCaptured && current.CanTransitionTo(domain.StatusCaptureSubmitted) {
		return []domain.ChargeStatus{domain.StatusCaptureSubmitted, domain.StatusCaptured}
	}
	return nil
}
