package application

import (
	"context"
	"net/http"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
)

// GatewayAdapter is the port every payment provider integration implements.
// Every call returns a typed outcome; failures are carried inside it as *domain.GatewayError.
type GatewayAdapter interface {
	Provider() domain.Provider
	Authorise(ctx context.Context, req domain.AuthoriseRequest) domain.AuthoriseOutcome
	Authorise3DSContinuation(ctx context.Context, req domain.ThreeDSContinuationRequest) domain.AuthoriseOutcome
	Capture(ctx context.Context, req domain.CaptureRequest) domain.OperationOutcome
	Refund(ctx context.Context, req domain.RefundRequest) domain.OperationOutcome
	Cancel(ctx context.Context, req domain.CancelRequest) domain.OperationOutcome
	Query(ctx context.Context, req domain.QueryRequest) domain.QueryResult
}

// TransactionIDGenerator is implemented by adapters whose provider expects the merchant
// to choose the order code before the authorisation is sent.
type TransactionIDGenerator interface {
	GenerateTransactionID() string
}

// NotificationRequest is a provider callback as received on the wire.
type NotificationRequest struct {
	Body       []byte
	Header     http.Header
	RemoteAddr string
}

// NotificationParser turns provider callbacks into canonical notifications.
type NotificationParser interface {
	Provider() domain.Provider
	// Parse decodes the body. It does not authenticate.
	Parse(req NotificationRequest) ([]domain.Notification, error)
	// Authenticate checks the callback against the account the notification belongs to.
	Authenticate(req NotificationRequest, account *domain.GatewayAccount) error
	// MapStatus maps a provider status to a canonical one. ok is false for statuses
	// that do not move a charge.
	MapStatus(providerStatus string) (status domain.ChargeStatus, ok bool)
	// Acknowledgement is the fixed body the provider expects back.
	Acknowledgement() (contentType string, body []byte)
}

// AdapterResolver selects the integration for a provider.
type AdapterResolver interface {
	Adapter(provider domain.Provider) (GatewayAdapter, error)
	NotificationParser(provider domain.Provider) (NotificationParser, error)
}

// ChargeRepository is the port for charge persistence.
type ChargeRepository interface {
	// Create inserts a charge at version 1 with its CREATED event and assigns charge.ID.
	Create(ctx context.Context, charge *domain.Charge) error
	FindByExternalID(ctx context.Context, externalID string) (*domain.Charge, error)
	FindByTransactionID(ctx context.Context, provider domain.Provider, transactionID string) (*domain.Charge, error)
	// UpdateWithVersion writes charge if the stored version equals expectedVersion and,
	// in the same transaction, appends event when it is non-nil. It returns false
	// when the stored version has moved on.
	UpdateWithVersion(ctx context.Context, charge *domain.Charge, expectedVersion int64, event *domain.ChargeEvent) (bool, error)
	ListEvents(ctx context.Context, chargeID int64) ([]domain.ChargeEvent, error)
	// FindByStatus returns charges in any of statuses last updated before cutoff, oldest first.
	FindByStatus(ctx context.Context, statuses []domain.ChargeStatus, cutoff time.Time, limit int) ([]*domain.Charge, error)
	// FindCaptureCandidates returns charges the capture poller should enqueue: immediate-capture
	// AUTH_SUCCESS charges and approved or retrying ones, idle since before cutoff.
	FindCaptureCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Charge, error)
}

// IdempotencyStore remembers the response produced for a client key.
type IdempotencyStore interface {
	// Find returns domain.ErrIdempotencyNotFound when no record exists.
	Find(ctx context.Context, accountID int64, key string) (*domain.IdempotencyRecord, error)
	// Save stores record unless one already exists for (account, key); the stored record is returned.
	Save(ctx context.Context, record *domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error)
}

type AccountRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.GatewayAccount, error)
}

// BinLookup resolves card facts from the leading digits of a card number.
type BinLookup interface {
	// Lookup returns domain.ErrCardInfoNotFound when the range is unknown.
	Lookup(ctx context.Context, cardNumber string) (*domain.CardInformation, error)
}

type RefundRepository interface {
	// CreateWithinAvailable inserts refund if, under a lock on the charge, the sum of counted
	// refunds plus this one stays within limit. Otherwise domain.ErrRefundNotAvailable.
	CreateWithinAvailable(ctx context.Context, refund *domain.Refund, limit int64) error
	UpdateStatus(ctx context.Context, refund *domain.Refund) error
	FindByChargeExternalID(ctx context.Context, chargeExternalID string) ([]*domain.Refund, error)
}

// CaptureQueue is an at-least-once queue of capture jobs.
type CaptureQueue interface {
	// Enqueue publishes job, to be delivered no earlier than delay from now.
	Enqueue(ctx context.Context, job domain.CaptureJob, delay time.Duration) error
	// Receive blocks until a job is due or ctx is done.
	Receive(ctx context.Context) (Delivery, error)
	Close() error
}

// Delivery is one received job. Ack must be called once processing finished, whatever the result.
type Delivery interface {
	Job() domain.CaptureJob
	Ack(ctx context.Context) error
}
