// Package protocol defines the push-channel frames exchanged between chat
// clients and the websocket gateway.
//
// Frames are a closed set: every concrete frame implements Frame through an
// unexported method, Decode rejects any tag outside the set, and Dispatch
// routes each kind to exactly one Handler method.
package protocol

import (
	"encoding/json"

	"channah-support-chat/internal/dto"

	"github.com/pkg/errors"
)

type FrameType string

const (
	TypeAuth       FrameType = "auth"
	TypeTyping     FrameType = "typing"
	TypeNewMessage FrameType = "new_message"
	TypeChatClosed FrameType = "chat_closed"
)

var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrUnknownFrame   = errors.New("protocol: unknown frame type")
)

type Frame interface {
	Type() FrameType
	sealed()
}

// Auth is sent by the client immediately after the connection opens.
type Auth struct {
	Token string
}

// Typing is an ephemeral "peer is typing" ping, in both directions.
type Typing struct{}

// NewMessage carries a stored message to every participant of the conversation.
type NewMessage struct {
	Message dto.Message
}

// ChatClosed tells participants the conversation reached its terminal status.
type ChatClosed struct{}

func (Auth) Type() FrameType       { return TypeAuth }
func (Typing) Type() FrameType     { return TypeTyping }
func (NewMessage) Type() FrameType { return TypeNewMessage }
func (ChatClosed) Type() FrameType { return TypeChatClosed }

func (Auth) sealed()       {}
func (Typing) sealed()     {}
func (NewMessage) sealed() {}
func (ChatClosed) sealed() {}

type envelope struct {
	Type    FrameType    `json:"type"`
	Token   string       `json:"token,omitempty"`
	Message *dto.Message `json:"message,omitempty"`
}

func Encode(f Frame) ([]byte, error) {
	env := envelope{Type: f.Type()}
	switch frame := f.(type) {
	case Auth:
		env.Token = frame.Token
	case NewMessage:
		msg := frame.Message
		env.Message = &msg
	case Typing, ChatClosed:
	default:
		return nil, errors.WithMessagef(ErrUnknownFrame, "%T", f)
	}
	return json.Marshal(env)
}

// MustEncode is Encode for frames built from known values.
func MustEncode(f Frame) []byte {
	data, err := Encode(f)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WithMessagef(ErrMalformedFrame, "%v", err)
	}

	switch env.Type {
	case TypeAuth:
		if env.Token == "" {
			return nil, errors.WithMessage(ErrMalformedFrame, "auth frame without token")
		}
		return Auth{Token: env.Token}, nil
	case TypeTyping:
		return Typing{}, nil
	case TypeNewMessage:
		if env.Message == nil || env.Message.ID == "" {
			return nil, errors.WithMessage(ErrMalformedFrame, "new_message without message id")
		}
		return NewMessage{Message: *env.Message}, nil
	case TypeChatClosed:
		return ChatClosed{}, nil
	case "":
		return nil, errors.WithMessage(ErrMalformedFrame, "missing type")
	default:
		return nil, errors.WithMessagef(ErrUnknownFrame, "%q", env.Type)
	}
}

// Handler receives server-to-client frames.
type Handler interface {
	OnNewMessage(dto.Message)
	OnTyping()
	OnChatClosed()
}

// Dispatch routes a server-to-client frame to h. Client-only frames such as
// Auth are reported as errors rather than dropped.
func Dispatch(f Frame, h Handler) error {
	switch frame := f.(type) {
	case NewMessage:
		h.OnNewMessage(frame.Message)
	case Typing:
		h.OnTyping()
	case ChatClosed:
		h.OnChatClosed()
	case Auth:
		return errors.WithMessagef(ErrUnknownFrame, "%s is client-to-server only", frame.Type())
	default:
		return errors.WithMessagef(ErrUnknownFrame, "%T", f)
	}
	return nil
}
