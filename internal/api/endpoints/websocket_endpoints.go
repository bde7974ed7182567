package endpoints

import (
	"context"
	"net/http"

	authsvc "channah-support-chat/internal/service/auth"
	conversationservice "channah-support-chat/internal/service/conversation"
	"channah-support-chat/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type WebsocketEndpoints interface {
	JoinConversation(http.ResponseWriter, *http.Request) error
}

type websocketEndpoints struct {
	handler *websocket.Handler
}

func NewWebsocketEndpoints(handler *websocket.Handler) WebsocketEndpoints {
	return &websocketEndpoints{handler: handler}
}

// JoinConversation upgrades without an Authorization header; the first
// frame on the socket carries the token.
func (h *websocketEndpoints) JoinConversation(w http.ResponseWriter, r *http.Request) error {
	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: "conversation id is required"}
	}
	h.handler.JoinConversation(w, r, conversationID)
	return nil
}

// ConversationAuthorizer admits a socket when its token is valid and the
// caller may read the conversation.
func ConversationAuthorizer(auth *authsvc.Service, conversations *conversationservice.Service) websocket.Authorizer {
	return websocket.AuthorizerFunc(func(ctx context.Context, token, conversationID string) (websocket.Identity, error) {
		identity, err := auth.IdentityFromToken(token)
		if err != nil {
			return websocket.Identity{}, err
		}
		if _, err := conversations.Authorize(ctx, conversationservice.Identity{
			UserID: identity.UserID,
			Email:  identity.Email,
			Role:   identity.Role,
		}, conversationID); err != nil {
			return websocket.Identity{}, err
		}
		return websocket.Identity{UserID: identity.UserID, Role: string(identity.Role)}, nil
	})
}
