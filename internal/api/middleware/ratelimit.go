package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"channah-support-chat/utils"

	"github.com/go-chi/httprate"
)

// RateLimit allows requests per window for each authenticated user, falling
// back to the client IP for anonymous routes.
func RateLimit(requests int, window time.Duration) Middleware {
	if requests <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	limiter := httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if identity, ok := IdentityFrom(r.Context()); ok {
				return "user:" + identity.UserID, nil
			}
			return "ip:" + utils.RealClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"message": "Too many requests."})
		}),
	)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return limiter(next).ServeHTTP
	}
}
