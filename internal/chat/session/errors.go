package session

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoConversation     = errors.New("session: no conversation selected")
	ErrEmptyContent       = errors.New("session: message is empty")
	ErrConversationClosed = errors.New("session: conversation is closed")
	ErrShutdown           = errors.New("session: controller shut down")
)

// SendError carries the content of a message that failed to send so the host
// can put it back into the composer.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
