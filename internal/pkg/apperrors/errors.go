package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// ErrTransport covers network and timeout failures. Only idempotent
	// reads may be retried by the caller.
	ErrTransport ErrorType = "TRANSPORT_ERROR"
	// ErrRateLimited means local token buckets were exhausted past the
	// bounded retry depth.
	ErrRateLimited ErrorType = "RATE_LIMITED"
	// ErrExchangeAPI is an exchange-side rejection, surfaced verbatim and
	// never auto-retried for mutating calls.
	ErrExchangeAPI ErrorType = "EXCHANGE_API_ERROR"
	// ErrValidation marks malformed oracle output or non-finite prices.
	ErrValidation ErrorType = "VALIDATION_ERROR"
	// ErrBreakerHalt is a control signal, not a failure: the circuit
	// breaker forced a close-only or no-op outcome.
	ErrBreakerHalt ErrorType = "CIRCUIT_BREAKER_HALT"
	// ErrStageFailure means a pipeline stage (judge/specialist) was
	// unreachable or timed out and the fallback chain was taken.
	ErrStageFailure ErrorType = "STAGE_FAILURE"

	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application.
type AppError struct {
	Type         ErrorType `json:"code"`
	Message      string    `json:"message"`
	ExchangeCode string    `json:"exchange_code,omitempty"`
	Suggestion   string    `json:"suggestion,omitempty"`
	HTTPStatus   int       `json:"-"`
	Cause        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewTransport(msg string, cause error) *AppError {
	return New(ErrTransport, msg, cause)
}

func NewRateLimited(msg string) *AppError {
	return New(ErrRateLimited, msg, nil)
}

// NewExchangeAPI carries the exchange's own code and message verbatim.
func NewExchangeAPI(code, msg string) *AppError {
	e := New(ErrExchangeAPI, msg, nil)
	e.ExchangeCode = code
	return e
}

func NewValidation(msg string) *AppError {
	return New(ErrValidation, msg, nil)
}

func NewBreakerHalt(reason string) *AppError {
	return New(ErrBreakerHalt, reason, nil)
}

func NewStageFailure(stage string, cause error) *AppError {
	return New(ErrStageFailure, fmt.Sprintf("stage %s failed", stage), cause)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

func IsTransport(err error) bool   { return IsType(err, ErrTransport) }
func IsRateLimited(err error) bool { return IsType(err, ErrRateLimited) }
func IsBreakerHalt(err error) bool { return IsType(err, ErrBreakerHalt) }

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrValidation, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrNotFound:
		return http.StatusNotFound
	case ErrExchangeAPI, ErrTransport:
		return http.StatusBadGateway
	case ErrBreakerHalt, ErrStageFailure:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrRateLimited:
		return "Back off and retry after the bucket refills."
	case ErrExchangeAPI:
		return "Inspect the exchange code; do not retry mutating calls."
	case ErrBreakerHalt:
		return "Wait for market stress to clear before adding risk."
	case ErrTransport:
		return "Retry only if the call was an idempotent read."
	default:
		return ""
	}
}
