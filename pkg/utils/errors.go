package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ResponseCode business error code carried by AppError and the response envelope
type ResponseCode int

const (
	CodeSuccess ResponseCode = 0

	// request / auth
	CodeInvalidParam ResponseCode = 10001
	CodeUnauthorized ResponseCode = 10002
	CodeForbidden    ResponseCode = 10003
	CodeRateLimit    ResponseCode = 10004

	// domain error kinds
	CodeNotFound          ResponseCode = 20001
	CodeInvalidState      ResponseCode = 20002
	CodeActivityNotReady  ResponseCode = 20003
	CodeTeamFull          ResponseCode = 20004
	CodeInsufficientStock ResponseCode = 20005
	CodeQuotaExceeded     ResponseCode = 20006
	CodeAlreadyProcessed  ResponseCode = 20007
	CodeValidation        ResponseCode = 20008
	CodeAmountMismatch    ResponseCode = 20009
	CodeSlotNotActive     ResponseCode = 20010
	CodeAlreadyDeleted    ResponseCode = 20011

	// system
	CodeInternalError ResponseCode = 50001
	CodeDatabaseError ResponseCode = 50002
	CodeRedisError    ResponseCode = 50003
)

var codeNames = map[ResponseCode]string{
	CodeSuccess:           "Success",
	CodeInvalidParam:      "InvalidParam",
	CodeUnauthorized:      "Unauthorized",
	CodeForbidden:         "Forbidden",
	CodeRateLimit:         "RateLimit",
	CodeNotFound:          "NotFound",
	CodeInvalidState:      "InvalidState",
	CodeActivityNotReady:  "ActivityNotReady",
	CodeTeamFull:          "TeamFull",
	CodeInsufficientStock: "InsufficientStock",
	CodeQuotaExceeded:     "QuotaExceeded",
	CodeAlreadyProcessed:  "AlreadyProcessed",
	CodeValidation:        "ValidationError",
	CodeAmountMismatch:    "AmountMismatch",
	CodeSlotNotActive:     "SlotNotActive",
	CodeAlreadyDeleted:    "AlreadyDeleted",
	CodeInternalError:     "InternalError",
	CodeDatabaseError:     "DatabaseError",
	CodeRedisError:        "RedisError",
}

// String returns the kind name of the code
func (c ResponseCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// HTTPStatus maps an error kind to the http status returned by handlers
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess, CodeAlreadyProcessed:
		return http.StatusOK
	case CodeInvalidParam, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeInvalidState, CodeActivityNotReady, CodeTeamFull, CodeInsufficientStock,
		CodeQuotaExceeded, CodeSlotNotActive, CodeAlreadyDeleted:
		return http.StatusConflict
	case CodeAmountMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same code, so sentinels work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewErrorf create application error with a formatted message
func NewErrorf(code ResponseCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors, one per kind
var (
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden    = NewError(CodeForbidden, "forbidden")
	ErrRateLimit    = NewError(CodeRateLimit, "rate limit exceeded")

	ErrNotFound          = NewError(CodeNotFound, "not found")
	ErrInvalidState      = NewError(CodeInvalidState, "invalid state")
	ErrActivityNotReady  = NewError(CodeActivityNotReady, "activity not ready")
	ErrTeamFull          = NewError(CodeTeamFull, "team full")
	ErrInsufficientStock = NewError(CodeInsufficientStock, "insufficient stock")
	ErrQuotaExceeded     = NewError(CodeQuotaExceeded, "quota exceeded")
	ErrAlreadyProcessed  = NewError(CodeAlreadyProcessed, "already processed")
	ErrValidation        = NewError(CodeValidation, "validation error")
	ErrAmountMismatch    = NewError(CodeAmountMismatch, "amount mismatch")
	ErrSlotNotActive     = NewError(CodeSlotNotActive, "slot not active")
	ErrAlreadyDeleted    = NewError(CodeAlreadyDeleted, "already deleted")

	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrDatabaseError = NewError(CodeDatabaseError, "database error")
	ErrRedisError    = NewError(CodeRedisError, "redis error")
)

// IsAppError check if it's an application error anywhere in the chain
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ResponseCode) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
