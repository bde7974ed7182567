package router

import (
	"channah-support-chat/internal/api"
	"channah-support-chat/internal/api/endpoints"
	"channah-support-chat/internal/api/middleware"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(prefix string) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		authEndpoints := endpoints.NewAuthEndpoints(s.Auth())
		authenticate := middleware.Authenticate(s.Auth())

		r.Post(prefix+"/auth/register", s.MakeHTTPHandleFunc(authEndpoints.Register, s.RateLimit()))
		r.Post(prefix+"/auth/login", s.MakeHTTPHandleFunc(authEndpoints.Login, s.RateLimit()))
		r.Get(prefix+"/auth/me", s.MakeHTTPHandleFunc(authEndpoints.Me, authenticate, s.RateLimit()))
	}
}
