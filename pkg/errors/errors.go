package errors

import (
	"errors"
	"fmt"
)

// AppError is a business error carrying a stable code and a user-facing message.
type AppError struct {
	Code    int    // stable error code
	Message string // user-facing message
	Err     error  // underlying cause, for logs
}

// Error implements error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap supports errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two AppErrors by code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError creates an AppError.
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is reports whether err is (or wraps) an AppError with target's code.
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode returns the AppError code of err, or CodeServerError.
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

const (
	CodeSuccess = 0

	// auth 10000-10999
	CodeUnauthenticated = 10001
	CodeTokenInvalid    = 10003
	CodeTokenExpired    = 10004

	// users 11000-11999
	CodeUserNotFound  = 11001
	CodeInvalidParams = 11002

	// chats 20000-20999
	CodeChatNotFound         = 20001
	CodeNotParticipant       = 20002
	CodeInvalidParticipants  = 20003
	CodeDirectoryUnavailable = 20004

	// system 50000-50999
	CodeServerError     = 50001
	CodeStoreError      = 50002
	CodeTooManyRequests = 50003
)

var (
	ErrUnauthenticated = NewError(CodeUnauthenticated, "authentication required")
	ErrTokenInvalid    = NewError(CodeTokenInvalid, "token is invalid")
	ErrTokenExpired    = NewError(CodeTokenExpired, "token has expired")
)

var (
	ErrUserNotFound  = NewError(CodeUserNotFound, "user not found")
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid parameters")
)

var (
	ErrChatNotFound         = NewError(CodeChatNotFound, "conversation not found")
	ErrNotParticipant       = NewError(CodeNotParticipant, "you are not a participant of this conversation")
	ErrInvalidParticipants  = NewError(CodeInvalidParticipants, "a conversation needs two distinct participants")
	ErrDirectoryUnavailable = NewError(CodeDirectoryUnavailable, "user directory unavailable")
)

var (
	ErrServerError     = NewError(CodeServerError, "internal server error")
	ErrStoreError      = NewError(CodeStoreError, "storage error")
	ErrTooManyRequests = NewError(CodeTooManyRequests, "too many requests, please slow down")
)
