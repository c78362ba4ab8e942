package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
	ErrCodeRequestProcessing   = "REQUEST_PROCESSING"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeGatewayUnavailable  = "GATEWAY_UNAVAILABLE"
	ErrCodeGatewayProtocol     = "GATEWAY_ERROR"
	ErrCodeRetryLimitExceeded  = "RETRY_LIMIT_EXCEEDED"
	ErrCodeUnauthorised        = "UNAUTHORISED"
	ErrCodeNotFound            = "NOT_FOUND"
)

func NewIdempotencyMismatchError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyMismatch,
		Message:    "Idempotency key reused with different request parameters",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewRequestProcessingError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRequestProcessing,
		Message:    "Request is being processed. Please retry in a moment.",
		HTTPStatus: http.StatusAccepted,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "Invalid state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

// NewGatewayUnavailableError is returned when the gateway outcome is unknown. Callers may retry.
func NewGatewayUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayUnavailable,
		Message:    "Payment provider unavailable, outcome pending",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewGatewayProtocolError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayProtocol,
		Message:    "Payment provider returned an unexpected response",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewRetryLimitExceededError(retries int, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRetryLimitExceeded,
		Message:    fmt.Sprintf("giving up after %d retries", retries),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUnauthorisedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUnauthorised,
		Message:    "Notification failed authentication",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
