package router

import (
	"channah-support-chat/internal/api"
	"channah-support-chat/internal/api/endpoints"

	"github.com/go-chi/chi/v5"
)

func WebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		wsEndpoints := endpoints.NewWebsocketEndpoints(s.Handler())

		r.Get(prefix+"/ws/conversation/{id}", s.MakeHTTPHandleFunc(wsEndpoints.JoinConversation, s.RateLimit()))
	}
}
