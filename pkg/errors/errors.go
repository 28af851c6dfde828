package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a business error carrying an application code, a user-facing
// message and the HTTP status it renders with.
type AppError struct {
	Code    int    // application code
	Message string // safe to show to the caller
	Status  int    // HTTP status
	Err     error  // underlying cause, logged only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError creates an AppError.
func NewError(code, status int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Wrap returns a copy of e with err attached as its cause.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Err:     err,
	}
}

// WithMessage returns a copy of e with a different user-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
		Err:     e.Err,
	}
}

// Is reports whether err is an AppError with the same code as target.
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode returns the application code of err, CodeServerError otherwise.
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage returns the user-facing message of err.
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// GetStatus returns the HTTP status of err, 500 for anything that is not an AppError.
func GetStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ============== codes ==============

const (
	CodeSuccess = 0

	// auth 10000-10999
	CodeEmailExists        = 10001
	CodeInvalidCredentials = 10002
	CodeTokenInvalid       = 10003
	CodeTokenExpired       = 10004

	// user 11000-11999
	CodeUserNotFound  = 11001
	CodeInvalidParams = 11002

	// chat 12000-12999
	CodeContentRequired   = 12001
	CodeRecipientRequired = 12002
	CodeRecipientNotFound = 12003
	CodeCannotMessageSelf = 12004
	CodePartnerNotFound   = 12005
	CodeInvalidCursor     = 12006

	// system 50000-50999
	CodeServerError     = 50001
	CodeDBError         = 50002
	CodeTooManyRequests = 50003
)

// ============== predefined errors ==============

// auth
var (
	ErrEmailExists        = NewError(CodeEmailExists, http.StatusConflict, "email already registered")
	ErrInvalidCredentials = NewError(CodeInvalidCredentials, http.StatusUnauthorized, "invalid email or password")
	ErrTokenInvalid       = NewError(CodeTokenInvalid, http.StatusUnauthorized, "token invalid")
	ErrTokenExpired       = NewError(CodeTokenExpired, http.StatusUnauthorized, "token expired")
)

// user
var (
	ErrUserNotFound  = NewError(CodeUserNotFound, http.StatusNotFound, "user not found")
	ErrInvalidParams = NewError(CodeInvalidParams, http.StatusBadRequest, "invalid parameters")
)

// chat
var (
	ErrContentRequired   = NewError(CodeContentRequired, http.StatusBadRequest, "message content is required")
	ErrRecipientRequired = NewError(CodeRecipientRequired, http.StatusBadRequest, "recipient is required")
	ErrRecipientNotFound = NewError(CodeRecipientNotFound, http.StatusNotFound, "recipient not found")
	ErrCannotMessageSelf = NewError(CodeCannotMessageSelf, http.StatusBadRequest, "cannot send a message to yourself")
	ErrPartnerNotFound   = NewError(CodePartnerNotFound, http.StatusNotFound, "user not found")
	ErrInvalidCursor     = NewError(CodeInvalidCursor, http.StatusBadRequest, "since must be an RFC3339 timestamp")
)

// system
var (
	ErrServerError    = NewError(CodeServerError, http.StatusInternalServerError, "internal server error")
	ErrDBError        = NewError(CodeDBError, http.StatusInternalServerError, "database error")
	ErrTooManyRequest = NewError(CodeTooManyRequests, http.StatusTooManyRequests, "too many requests, slow down")
)
