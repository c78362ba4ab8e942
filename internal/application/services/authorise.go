package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

const (
	ReasonInvalidCardNumber = "INVALID_CARD_NUMBER"
	ReasonCardNotSupported  = "CARD_NOT_SUPPORTED"
	ReasonGatewayError      = "GATEWAY_ERROR"
)

// AuthorisationResponse is what the payer-facing surface returns, and what is replayed
// for a repeated idempotency key.
type AuthorisationResponse struct {
	ChargeID           string              `json:"chargeId"`
	Status             domain.ChargeStatus `json:"status"`
	Reason             string              `json:"reason,omitempty"`
	TransactionID      string              `json:"transactionId,omitempty"`
	Amount             int64               `json:"amount"`
	CorporateSurcharge *int64              `json:"corporateSurcharge,omitempty"`
	TotalAmount        int64               `json:"totalAmount"`
	CardBrand          string              `json:"cardBrand,omitempty"`
	ThreeDS            *domain.ThreeDSData `json:"threeDs,omitempty"`
}

type AuthorisationOrchestrator struct {
	charges     application.ChargeRepository
	accounts    application.AccountRepository
	adapters    application.AdapterResolver
	bins        application.BinLookup
	idempotency application.IdempotencyStore
	queue       application.CaptureQueue
	machine     *ChargeStateMachine
	logger      *slog.Logger
}

func NewAuthorisationOrchestrator(
	charges application.ChargeRepository,
	accounts application.AccountRepository,
	adapters application.AdapterResolver,
	bins application.BinLookup,
	idempotency application.IdempotencyStore,
	queue application.CaptureQueue,
	machine *ChargeStateMachine,
	logger *slog.Logger,
) *AuthorisationOrchestrator {
	return &AuthorisationOrchestrator{
		charges:     charges,
		accounts:    accounts,
		adapters:    adapters,
		bins:        bins,
		idempotency: idempotency,
		queue:       queue,
		machine:     machine,
		logger:      logger,
	}
}

// Authorise validates the card, prices the charge and submits it to the account's gateway.
// A ConnectionError leaves the charge in AUTH_SUBMITTED and returns a retryable error;
// reconciliation settles it later.
func (o *AuthorisationOrchestrator) Authorise(ctx context.Context, cmd AuthoriseCommand) (*AuthorisationResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	charge, err := loadCharge(ctx, o.charges, cmd.ChargeExternalID)
	if err != nil {
		return nil, err
	}

	requestHash := ComputeHash(cmd)
	if cmd.IdempotencyKey != "" {
		resp, found, err := o.replay(ctx, charge, cmd.IdempotencyKey, requestHash)
		if err != nil || found {
			return resp, err
		}
	}

	switch charge.Status {
	case domain.StatusCreated, domain.StatusEnteringDetails:
	case domain.StatusAuthReady, domain.StatusAuthSubmitted:
		return nil, application.NewRequestProcessingError()
	default:
		if cmd.IdempotencyKey != "" {
			// the request that authorised it may still be storing its response
			resp, found, err := o.replay(ctx, charge, cmd.IdempotencyKey, requestHash)
			if err != nil || found {
				return resp, err
			}
		}
		return nil, application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "authorisation"))
	}

	account, adapter, err := loadAccount(ctx, o.accounts, o.adapters, charge.AccountID)
	if err != nil {
		return nil, err
	}

	res, err := o.machine.Transition(ctx, charge, domain.StatusEnteringDetails, nil)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Conflicted() {
		return o.concurrentRequest(ctx, charge, cmd.IdempotencyKey, requestHash)
	}

	card := cmd.Card()
	if !domain.LuhnValid(card.CardNumber) {
		return o.reject(ctx, charge, ReasonInvalidCardNumber, cmd.IdempotencyKey, requestHash)
	}

	info, err := o.bins.Lookup(ctx, card.CardNumber)
	if err != nil {
		if errors.Is(err, domain.ErrCardInfoNotFound) {
			return o.reject(ctx, charge, ReasonCardNotSupported, cmd.IdempotencyKey, requestHash)
		}
		return nil, application.NewInternalError(err)
	}
	surcharge := account.CorporateSurcharges.SurchargeFor(*info)

	res, err = o.machine.TransitionWith(ctx, charge, domain.StatusAuthReady, nil, func(c *domain.Charge) error {
		c.ApplyCard(*info, surcharge)
		return nil
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Conflicted() {
		return o.concurrentRequest(ctx, charge, cmd.IdempotencyKey, requestHash)
	}

	res, err = o.machine.TransitionWith(ctx, charge, domain.StatusAuthSubmitted, nil, func(c *domain.Charge) error {
		if gen, ok := adapter.(application.TransactionIDGenerator); ok && c.GatewayTransactionID == nil {
			return c.AssignTransactionID(gen.GenerateTransactionID())
		}
		return nil
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Conflicted() {
		return o.concurrentRequest(ctx, charge, cmd.IdempotencyKey, requestHash)
	}

	outcome := adapter.Authorise(ctx, domain.AuthoriseRequest{
		Account:       account,
		ChargeID:      charge.ExternalID,
		TransactionID: charge.TransactionID(),
		Amount:        charge.TotalAmount(),
		Currency:      charge.Currency,
		Description:   charge.Description,
		Card:          card,
		PayerIP:       cmd.PayerIP,
		AcceptHeader:  cmd.AcceptHeader,
		UserAgent:     cmd.UserAgent,
	})

	resp, err := o.applyOutcome(ctx, charge, outcome)
	if err != nil {
		return nil, err
	}
	return o.remember(ctx, charge, cmd.IdempotencyKey, requestHash, resp)
}

// Authorise3DS submits the payer's 3-D Secure result for a charge waiting in AUTH_3DS_REQUIRED.
func (o *AuthorisationOrchestrator) Authorise3DS(ctx context.Context, cmd ThreeDSCommand) (*AuthorisationResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	charge, err := loadCharge(ctx, o.charges, cmd.ChargeExternalID)
	if err != nil {
		return nil, err
	}
	if charge.Status != domain.StatusAuth3DSRequired {
		return nil, application.NewInvalidStateError(domain.NewInvalidStateError(charge.Status, "3ds authorisation"))
	}

	account, adapter, err := loadAccount(ctx, o.accounts, o.adapters, charge.AccountID)
	if err != nil {
		return nil, err
	}

	var threeDS domain.ThreeDSData
	if charge.ThreeDSData != nil {
		threeDS = *charge.ThreeDSData
	}

	res, err := o.machine.Transition(ctx, charge, domain.StatusAuthSubmitted, nil)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Conflicted() {
		return nil, application.NewRequestProcessingError()
	}

	outcome := adapter.Authorise3DSContinuation(ctx, domain.ThreeDSContinuationRequest{
		Account:       account,
		ChargeID:      charge.ExternalID,
		TransactionID: charge.TransactionID(),
		Amount:        charge.TotalAmount(),
		Currency:      charge.Currency,
		ThreeDS:       threeDS,
		PaResponse:    cmd.PaResponse,
	})
	return o.applyOutcome(ctx, charge, outcome)
}

func (o *AuthorisationOrchestrator) applyOutcome(ctx context.Context, charge *domain.Charge, outcome domain.AuthoriseOutcome) (*AuthorisationResponse, error) {
	target, ok := outcome.Status()
	if !ok {
		o.logger.ErrorContext(ctx, "authorisation outcome unknown, leaving charge submitted",
			"charge_id", charge.ExternalID,
			"status", charge.Status,
			"transaction_id", outcome.TransactionID,
			"error", outcome.Err,
		)
		if outcome.TransactionID != "" && charge.GatewayTransactionID == nil {
			o.rememberTransactionID(ctx, charge, outcome.TransactionID)
		}
		return nil, application.NewGatewayUnavailableError(outcome.Err)
	}
	if outcome.Err != nil {
		o.logger.ErrorContext(ctx, "gateway protocol error during authorisation",
			"charge_id", charge.ExternalID,
			"error", outcome.Err,
		)
	}

	res, err := o.machine.TransitionWith(ctx, charge, target, nil, func(c *domain.Charge) error {
		if outcome.TransactionID != "" {
			if err := c.AssignTransactionID(outcome.TransactionID); err != nil {
				o.logger.WarnContext(ctx, "gateway returned a different transaction id",
					"charge_id", c.ExternalID,
					"error", err,
				)
			}
		}
		if target == domain.StatusAuth3DSRequired {
			c.ThreeDSData = outcome.ThreeDS
		}
		return nil
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	if res.Conflicted() {
		// a notification got there first; report whatever is stored now
		latest, err := loadCharge(ctx, o.charges, charge.ExternalID)
		if err != nil {
			return nil, err
		}
		*charge = *latest
	}

	if charge.Status == domain.StatusAuthSuccess && !charge.DelayedCapture {
		o.enqueueCapture(ctx, charge)
	}

	resp := responseFor(charge)
	switch {
	case outcome.Kind == domain.AuthoriseRejected:
		resp.Reason = outcome.Reason
	case outcome.Err != nil:
		resp.Reason = ReasonGatewayError
	}
	return resp, nil
}

// rememberTransactionID keeps the id of an authorisation whose outcome is unknown so
// reconciliation can query it. Losing the race is fine: whoever won knows more.
func (o *AuthorisationOrchestrator) rememberTransactionID(ctx context.Context, charge *domain.Charge, transactionID string) {
	_, err := o.machine.Mutate(ctx, charge, func(c *domain.Charge) error {
		return c.AssignTransactionID(transactionID)
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to store transaction id of pending authorisation",
			"charge_id", charge.ExternalID,
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

func (o *AuthorisationOrchestrator) enqueueCapture(ctx context.Context, charge *domain.Charge) {
	job := domain.CaptureJob{ChargeExternalID: charge.ExternalID, EnqueuedAt: time.Now().UTC()}
	if err := o.queue.Enqueue(ctx, job, 0); err != nil {
		o.logger.ErrorContext(ctx, "failed to enqueue capture, poller will pick it up",
			"charge_id", charge.ExternalID,
			"error", err,
		)
	}
}

// reject walks an invalid card to AUTH_REJECTED without calling the gateway.
func (o *AuthorisationOrchestrator) reject(ctx context.Context, charge *domain.Charge, reason, key, requestHash string) (*AuthorisationResponse, error) {
	res, err := o.machine.Advance(ctx, charge,
		domain.StatusAuthReady,
		domain.StatusAuthSubmitted,
		domain.StatusAuthRejected,
	)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Conflicted() {
		return o.concurrentRequest(ctx, charge, key, requestHash)
	}

	o.logger.InfoContext(ctx, "authorisation rejected before gateway",
		"charge_id", charge.ExternalID,
		"reason", reason,
	)

	resp := responseFor(charge)
	resp.Reason = reason
	return o.remember(ctx, charge, key, requestHash, resp)
}

func (o *AuthorisationOrchestrator) replay(ctx context.Context, charge *domain.Charge, key, requestHash string) (*AuthorisationResponse, bool, error) {
	record, err := o.idempotency.Find(ctx, charge.AccountID, key)
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyNotFound) {
			return nil, false, nil
		}
		return nil, false, application.NewInternalError(err)
	}
	if record.ChargeExternalID != charge.ExternalID || record.RequestHash != requestHash {
		return nil, false, application.NewIdempotencyMismatchError()
	}

	var resp AuthorisationResponse
	if err := json.Unmarshal(record.Response, &resp); err != nil {
		return nil, false, application.NewInternalError(err)
	}
	return &resp, true, nil
}

// concurrentRequest answers a request that lost the race to another one for the same charge.
func (o *AuthorisationOrchestrator) concurrentRequest(ctx context.Context, charge *domain.Charge, key, requestHash string) (*AuthorisationResponse, error) {
	if key != "" {
		resp, found, err := o.replay(ctx, charge, key, requestHash)
		if err != nil || found {
			return resp, err
		}
	}
	return nil, application.NewRequestProcessingError()
}

// remember stores resp under key. If another request stored first, that response wins.
func (o *AuthorisationOrchestrator) remember(ctx context.Context, charge *domain.Charge, key, requestHash string, resp *AuthorisationResponse) (*AuthorisationResponse, error) {
	if key == "" {
		return resp, nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	stored, created, err := o.idempotency.Save(ctx, &domain.IdempotencyRecord{
		Key:              key,
		AccountID:        charge.AccountID,
		ChargeExternalID: charge.ExternalID,
		RequestHash:      requestHash,
		Response:         body,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to store idempotent response",
			"charge_id", charge.ExternalID,
			"error", err,
		)
		return resp, nil
	}
	if created {
		return resp, nil
	}

	var existing AuthorisationResponse
	if err := json.Unmarshal(stored.Response, &existing); err != nil {
		return nil, application.NewInternalError(err)
	}
	return &existing, nil
}

func responseFor(charge *domain.Charge) *AuthorisationResponse {
	return &AuthorisationResponse{
		ChargeID:           charge.ExternalID,
		Status:             charge.Status,
		TransactionID:      charge.TransactionID(),
		Amount:             charge.Amount,
		CorporateSurcharge: charge.CorporateSurcharge,
		TotalAmount:        charge.TotalAmount(),
		CardBrand:          charge.CardBrand,
		ThreeDS:            charge.ThreeDSData,
	}
}
