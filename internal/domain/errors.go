package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeIllegalStateTransition = "ILLEGAL_STATE_TRANSITION"
	ErrCodeChargeNotFound         = "CHARGE_NOT_FOUND"
	ErrCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField   = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidState           = "INVALID_STATE"
	ErrCodeTransactionIDImmutable = "TRANSACTION_ID_IMMUTABLE"
	ErrCodeRefundNotAvailable     = "REFUND_NOT_AVAILABLE"
	ErrCodeCardInfoNotFound       = "CARD_INFO_NOT_FOUND"
	ErrCodeIdempotencyNotFound    = "IDEMPOTENCY_KEY_NOT_FOUND"
)

var (
	ErrIllegalStateTransition = errors.New("illegal state transition")
	ErrChargeNotFound         = errors.New("charge not found")
	ErrAccountNotFound        = errors.New("gateway account not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrInvalidState           = errors.New("invalid state")
	ErrTransactionIDImmutable = errors.New("gateway transaction id already set")
	ErrRefundNotAvailable     = errors.New("refund amount not available")
	ErrCardInfoNotFound       = errors.New("card information not found")
	ErrIdempotencyNotFound    = errors.New("idempotency key not found")
	ErrRefundNotFound         = errors.New("refund not found")
)

func NewIllegalStateTransitionError(from, to ChargeStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeIllegalStateTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrIllegalStateTransition,
	}
}

func NewChargeNotFoundError(externalID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeChargeNotFound,
		Message: fmt.Sprintf("charge %s not found", externalID),
		Err:     ErrChargeNotFound,
	}
}

func NewAccountNotFoundError(accountID int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAccountNotFound,
		Message: fmt.Sprintf("gateway account %d not found", accountID),
		Err:     ErrAccountNotFound,
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
		Err:     ErrInvalidAmount,
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
		Err:     ErrMissingRequiredField,
	}
}

func NewInvalidStateError(current ChargeStatus, operation string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("charge in status %s does not allow %s", current, operation),
		Err:     ErrInvalidState,
	}
}

func NewTransactionIDImmutableError(existing, proposed string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionIDImmutable,
		Message: fmt.Sprintf("gateway transaction id is %s, refusing %s", existing, proposed),
		Err:     ErrTransactionIDImmutable,
	}
}

func NewRefundNotAvailableError(requested, available int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundNotAvailable,
		Message: fmt.Sprintf("refund of %d exceeds available amount %d", requested, available),
		Err:     ErrRefundNotAvailable,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
