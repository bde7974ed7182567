package websocket

import (
	"context"
	"encoding/json"
)

type Room struct {
	ID          string
	Clients     map[string]*Client
	unsubscribe func()
}

// Identity is the authenticated participant behind a connection.
type Identity struct {
	UserID string
	Role   string
}

// Authorizer validates the auth frame token against a conversation.
type Authorizer interface {
	AuthorizeConversation(ctx context.Context, token, conversationID string) (Identity, error)
}

type AuthorizerFunc func(ctx context.Context, token, conversationID string) (Identity, error)

func (f AuthorizerFunc) AuthorizeConversation(ctx context.Context, token, conversationID string) (Identity, error) {
	return f(ctx, token, conversationID)
}

// envelope is what travels over the broker. Origin is the connection that
// produced the frame; it does not get its own frame back.
type envelope struct {
	Origin string          `json:"origin,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

type delivery struct {
	roomID string
	origin string
	frame  []byte
}

type RoomRes struct {
	ID      string `json:"id"`
	Clients int    `json:"clients"`
}
