package conversation

import "channah-support-chat/internal/model"

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
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

// IsCode reports whether err is a service error with the given code.
func IsCode(err error, code ErrorCode) bool {
	svcErr, ok := err.(*Error)
	return ok && svcErr.Code == code
}

type Identity struct {
	UserID string
	Email  string
	Role   model.SenderRole
}

type CreateConversationParams struct {
	Subject string
	Message string
}

type ConversationResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

// ConversationSummary is a conversation as seen by one participant.
type ConversationSummary struct {
	Conversation model.ConversationItem
	UnreadCount  int
	LastMessage  *model.MessageItem
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
	// Activated is set when this message moved the conversation from open to
	// active.
	Activated bool
}

type ListMessagesResult struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
}
