package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput         = "WHATSFLOW_BAD_INPUT"
	ErrorUnauthorized     = "WHATSFLOW_UNAUTHORIZED"
	ErrorForbidden        = "WHATSFLOW_FORBIDDEN"
	ErrorNotFound         = "WHATSFLOW_NOT_FOUND"
	ErrorConflict         = "WHATSFLOW_CONFLICT"
	ErrorRateLimited      = "WHATSFLOW_RATE_LIMITED"
	ErrorAPI              = "WHATSFLOW_API_ERROR"
	ErrorNetwork          = "WHATSFLOW_NETWORK_ERROR"
	ErrorInvalidSignature = "WHATSFLOW_INVALID_SIGNATURE"
	ErrorHandlerFailed    = "WHATSFLOW_HANDLER_FAILED"
	ErrorInternal         = "WHATSFLOW_INTERNAL_ERROR"
)

// NewError builds a rich error with the default HTTP code and text code for the category.
func NewError(message string, category goerrors.Category) *goerrors.Error {
	return ensureEnvelope(goerrors.New(message, category))
}

// WrapError wraps source keeping it in the chain for errors.As/Is.
func WrapError(source error, category goerrors.Category, message string) *goerrors.Error {
	if source == nil {
		return NewError(message, category)
	}
	return ensureEnvelope(goerrors.Wrap(source, category, message))
}

// MapError converts any error into a rich envelope. Rich errors pass through
// with missing code fields filled in.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).WithTextCode(ErrorInvalidSignature))
	case strings.Contains(msg, "rate limit"):
		return NewError(err.Error(), goerrors.CategoryRateLimit)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return NewError(err.Error(), goerrors.CategoryBadInput)
	}

	return ensureEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = DefaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func DefaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorAPI
	case goerrors.CategoryOperation:
		return ErrorHandlerFailed
	default:
		return ErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
