package router

import (
	"channah-support-chat/internal/api"
	"channah-support-chat/internal/api/endpoints"

	"github.com/go-chi/chi/v5"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(r chi.Router, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints(s.HealthChecks())

		r.Get(prefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
	}
}

// All registers every chat route under prefix.
func All(prefix string) []api.RouteRegistrar {
	return []api.RouteRegistrar{
		UtilsRoutes(prefix),
		AuthRoutes(prefix),
		ConversationRoutes(prefix),
		WebsocketRoutes(prefix),
	}
}
