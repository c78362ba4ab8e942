package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/chargecore/internal/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if gwErr, ok := domain.IsGatewayError(err); ok {
		if gwErr.Kind == domain.GatewayConnectionError {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeIdempotencyMismatch, ErrCodeInvalidInput, ErrCodeNotFound, ErrCodeUnauthorised:
			return CategoryClientError
		case ErrCodeInvalidState:
			return CategoryBusinessRule
		case ErrCodeInternal:
			return CategoryInfrastructure
		case ErrCodeRequestProcessing, ErrCodeGatewayUnavailable:
			return CategoryTransient
		case ErrCodeGatewayProtocol, ErrCodeRetryLimitExceeded:
			return CategoryPermanent
		}
	}

	switch {
	case errors.Is(err, domain.ErrIllegalStateTransition),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrRefundNotAvailable),
		errors.Is(err, domain.ErrTransactionIDImmutable):
		return CategoryBusinessRule
	case errors.Is(err, domain.ErrChargeNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMissingRequiredField):
		return CategoryClientError
	}

	return CategoryInfrastructure
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMissingRequiredField):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIllegalStateTransition),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrRefundNotAvailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrChargeNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRefundNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if gwErr, ok := domain.IsGatewayError(err); ok {
		if gwErr.Kind == domain.GatewayConnectionError {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if gwErr, ok := domain.IsGatewayError(err); ok {
		if gwErr.Kind == domain.GatewayConnectionError {
			return ErrCodeGatewayUnavailable
		}
		return ErrCodeGatewayProtocol
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
