package websocket

import (
	"context"
	"net/http"

	"channah-support-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	auth     Authorizer
	upgrader websocket.Upgrader
	log      *logger.Logger
	ctx      context.Context
}

// NewHandler serves conversation push connections. ctx bounds the lifetime
// of every connection it accepts.
func NewHandler(ctx context.Context, hub *Hub, auth Authorizer, log *logger.Logger) *Handler {
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.OrGlobal(log).Named("websocket"),
		ctx: ctx,
	}
}

// JoinConversation upgrades the request. The connection stays
// unauthenticated until its first frame, an auth frame, is accepted.
func (h *Handler) JoinConversation(w http.ResponseWriter, r *http.Request, conversationID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	cl := newClient(conn, conversationID, h.hub, h.log)
	go cl.serve(h.ctx, h.auth)
}

func (h *Handler) Hub() *Hub {
	return h.hub
}
