package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AppError. The HTTP layer maps each kind to a status code.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindForbidden    ErrorKind = "forbidden"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// AppError is an expected, user-visible failure. Message is safe to show to
// the caller as is.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeRequestNotFound        = "FOLLOW_REQUEST_NOT_FOUND"
	ErrCodeNotRequestRecipient    = "NOT_REQUEST_RECIPIENT"
	ErrCodeSelfTarget             = "SELF_TARGET"
	ErrCodeRequestAlreadySent     = "FOLLOW_REQUEST_ALREADY_SENT"
	ErrCodeAlreadyFollowing       = "ALREADY_FOLLOWING"
	ErrCodeRequestAlreadyAccepted = "FOLLOW_REQUEST_ALREADY_ACCEPTED"
	ErrCodeNotAFollower           = "NOT_A_FOLLOWER"
	ErrCodeNoFollowOrRequest      = "NO_FOLLOW_OR_REQUEST"
	ErrCodeDuplicateUser          = "DUPLICATE_USER"
	ErrCodeNotProfileOwner        = "NOT_PROFILE_OWNER"
	ErrCodeInternal               = "INTERNAL"
)

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: ErrCodeInvalidInput, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

func NewNotFoundError(code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: message}
}

func NewForbiddenError(code, message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: code, Message: message}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message}
}

// NewUserNotFoundError is returned when a referenced user does not exist or
// is hidden because it has not finished onboarding.
func NewUserNotFoundError(message string) *AppError {
	if message == "" {
		message = "User not found"
	}
	return NewNotFoundError(ErrCodeUserNotFound, message)
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
