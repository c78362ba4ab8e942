package domain

import (
	"errors"
	"fmt"
	"time"
)

// GatewayErrorKind classifies a failed gateway interaction.
type GatewayErrorKind string

const (
	// GatewayConnectionError means the outcome is unknown: timeout, refused connection, 5xx.
	GatewayConnectionError GatewayErrorKind = "CONNECTION"
	// GatewayProtocolError means the gateway answered with something we could not understand.
	GatewayProtocolError GatewayErrorKind = "PROTOCOL"
)

type GatewayError struct {
	Kind     GatewayErrorKind
	Provider Provider
	Message  string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway %s error: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s gateway %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsRetryable is true only when the gateway may not have seen the request.
func (e *GatewayError) IsRetryable() bool {
	return e.Kind == GatewayConnectionError
}

func NewConnectionError(provider Provider, message string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayConnectionError, Provider: provider, Message: message, Err: err}
}

func NewProtocolError(provider Provider, message string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayProtocolError, Provider: provider, Message: message, Err: err}
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

// AuthoriseRequest is the canonical request handed to a gateway adapter.
type AuthoriseRequest struct {
	Account       *GatewayAccount
	ChargeID      string
	TransactionID string
	Amount        int64
	Currency      string
	Description   string
	Card          CardDetails
	PayerIP       string
	AcceptHeader  string
	UserAgent     string
}

type ThreeDSContinuationRequest struct {
	Account       *GatewayAccount
	ChargeID      string
	TransactionID string
	Amount        int64
	Currency      string
	ThreeDS       ThreeDSData
	PaResponse    string
}

type CaptureRequest struct {
	Account       *GatewayAccount
	ChargeID      string
	TransactionID string
	Amount        int64
	Currency      string
}

type RefundRequest struct {
	Account       *GatewayAccount
	ChargeID      string
	RefundID      string
	TransactionID string
	Amount        int64
	Currency      string
	Reference     string
}

type CancelRequest struct {
	Account       *GatewayAccount
	ChargeID      string
	TransactionID string
}

// QueryRequest asks for the gateway's view of a charge. TransactionID is empty when an
// authorisation was sent but its response never arrived; adapters whose provider assigns
// the id then look the transaction up by ChargeID.
type QueryRequest struct {
	Account       *GatewayAccount
	ChargeID      string
	TransactionID string
}

// AuthoriseOutcomeKind is the tagged result of an authorisation.
type AuthoriseOutcomeKind string

const (
	AuthoriseAuthorised  AuthoriseOutcomeKind = "AUTHORISED"
	AuthoriseRejected    AuthoriseOutcomeKind = "REJECTED"
	AuthoriseRequires3DS AuthoriseOutcomeKind = "REQUIRES_3DS"
	AuthoriseError       AuthoriseOutcomeKind = "ERROR"
)

type AuthoriseOutcome struct {
	Kind          AuthoriseOutcomeKind
	TransactionID string
	Reason        string
	ThreeDS       *ThreeDSData
	Err           *GatewayError
}

// Status maps an outcome to the charge status it drives, and false for connection errors,
// which leave the charge where it is.
func (o AuthoriseOutcome) Status() (ChargeStatus, bool) {
	switch o.Kind {
	case AuthoriseAuthorised:
		return StatusAuthSuccess, true
	case AuthoriseRejected:
		return StatusAuthRejected, true
	case AuthoriseRequires3DS:
		return StatusAuth3DSRequired, true
	}
	if o.Err != nil && o.Err.Kind == GatewayConnectionError {
		return "", false
	}
	return StatusAuthError, true
}

func AuthoriseFailed(err *GatewayError) AuthoriseOutcome {
	return AuthoriseOutcome{Kind: AuthoriseError, Err: err}
}

// OperationOutcomeKind is the tagged result of capture, refund and cancel.
type OperationOutcomeKind string

const (
	OperationSubmitted OperationOutcomeKind = "SUBMITTED"
	OperationRejected  OperationOutcomeKind = "REJECTED"
	OperationError     OperationOutcomeKind = "ERROR"
)

type OperationOutcome struct {
	Kind      OperationOutcomeKind
	Reference string
	Reason    string
	Err       *GatewayError
}

func OperationFailed(err *GatewayError) OperationOutcome {
	return OperationOutcome{Kind: OperationError, Err: err}
}

// QueryResult is the gateway's view of a charge, already mapped to a canonical status.
// Status is empty when the provider status has no canonical equivalent.
type QueryResult struct {
	Status         ChargeStatus
	TransactionID  string
	ProviderStatus string
	Amount         *int64
	Raw            string
	Err            *GatewayError
}

// Notification is one status update parsed out of a provider callback.
type Notification struct {
	TransactionID  string
	ProviderStatus string
	Reference      string
	EventTime      *time.Time
}
