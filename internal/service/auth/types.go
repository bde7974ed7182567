package auth

import "channah-support-chat/internal/model"

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeInternal     ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type LoginParams struct {
	Email    string
	Password string
}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string
	Email  string
	Role   model.SenderRole
}

type AuthResult struct {
	User      model.UserItem
	Token     string
	ExpiresAt int64
}
