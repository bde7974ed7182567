package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"channah-support-chat/internal/api/middleware"
	"channah-support-chat/internal/queue"
	"channah-support-chat/pkg/logger"

	"go.uber.org/zap"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue and renders returned errors
// as {"message": ...}. mws wrap f in order, the first outermost.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, mws ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		s.requestQueueManager.EnqueueJob(queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		})

		err := <-errc
		if err == nil {
			return
		}

		log := logger.FromContext(r.Context())
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode >= http.StatusInternalServerError {
				log.Error("request failed", zap.Int("status", httpErr.StatusCode), zap.Error(httpErr.Err))
			} else if httpErr.Err != nil {
				log.Debug("request rejected", zap.Int("status", httpErr.StatusCode), zap.Error(httpErr.Err))
			}
			WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
			return
		}
		log.Error("unhandled request error", zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
	}

	return middleware.Chain(baseHandler, mws...)
}
