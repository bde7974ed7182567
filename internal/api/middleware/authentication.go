package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	authservice "channah-support-chat/internal/service/auth"
)

type identityKey struct{}

// IdentityResolver turns an Authorization header into a caller identity.
type IdentityResolver interface {
	IdentityFromAuthorizationHeader(header string) (authservice.Identity, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller identity on the request context.
func Authenticate(resolver IdentityResolver) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.IdentityFromAuthorizationHeader(r.Header.Get("Authorization"))
			if err != nil {
				message := "Unauthorized"
				if svcErr, ok := err.(*authservice.Error); ok {
					message = svcErr.Message
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"message": message})
				return
			}
			next(w, r.WithContext(WithIdentity(r.Context(), identity)))
		}
	}
}

func WithIdentity(ctx context.Context, identity authservice.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(ctx context.Context) (authservice.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(authservice.Identity)
	return identity, ok
}
