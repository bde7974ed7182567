package session

import "channah-support-chat/internal/dto"

// Listener receives session events. Methods run on the controller's event
// loop: they may read from a Handle but must not call Connect, Send,
// CloseConversation, Teardown or Shutdown.
type Listener interface {
	OnMessage(dto.Message)
	OnTyping(bool)
	OnClosed(conversationID string)
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	Message func(dto.Message)
	Typing  func(bool)
	Closed  func(conversationID string)
}

func (f Funcs) OnMessage(m dto.Message) {
	if f.Message != nil {
		f.Message(m)
	}
}

func (f Funcs) OnTyping(v bool) {
	if f.Typing != nil {
		f.Typing(v)
	}
}

func (f Funcs) OnClosed(id string) {
	if f.Closed != nil {
		f.Closed(id)
	}
}
