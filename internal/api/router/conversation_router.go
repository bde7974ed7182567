package router

import (
	"channah-support-chat/internal/api"
	"channah-support-chat/internal/api/endpoints"
	"channah-support-chat/internal/api/middleware"

	"github.com/go-chi/chi/v5"
)

func ConversationRoutes(prefix string) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		convEndpoints := endpoints.NewConversationEndpoints(s.Conversations(), s.Publisher())
		authenticate := middleware.Authenticate(s.Auth())

		r.Get(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.ListConversations, authenticate, s.RateLimit()))
		r.Post(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.CreateConversation, authenticate, s.RateLimit()))
		r.Get(prefix+"/conversation/{id}/messages", s.MakeHTTPHandleFunc(convEndpoints.ListMessages, authenticate, s.RateLimit()))
		r.Post(prefix+"/conversation/{id}/messages", s.MakeHTTPHandleFunc(convEndpoints.PostMessage, authenticate, s.RateLimit()))
		r.Post(prefix+"/conversation/{id}/close", s.MakeHTTPHandleFunc(convEndpoints.CloseConversation, authenticate, s.RateLimit()))
	}
}
