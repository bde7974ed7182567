package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"channah-support-chat/internal/model"
	authservice "channah-support-chat/internal/service/auth"

	"github.com/stretchr/testify/require"
)

type headerResolver map[string]authservice.Identity

func (h headerResolver) IdentityFromAuthorizationHeader(header string) (authservice.Identity, error) {
	identity, ok := h[header]
	if !ok {
		return authservice.Identity{}, errors.New("no")
	}
	return identity, nil
}

func TestAuthenticateStoresIdentity(t *testing.T) {
	resolver := headerResolver{"Bearer good": {UserID: "u1", Role: model.RoleAgent}}

	var seen authservice.Identity
	h := Authenticate(resolver)(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		seen = identity
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	h(rec, req)
	require.Equal(t, "u1", seen.UserID)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	h(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
}

func TestRateLimitPerIdentity(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	h := RateLimit(2, time.Minute)(ok)

	call := func(userID string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		if userID != "" {
			req = req.WithContext(WithIdentity(req.Context(), authservice.Identity{UserID: userID}))
		}
		h(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, call("u1"))
	require.Equal(t, http.StatusNoContent, call("u1"))
	require.Equal(t, http.StatusTooManyRequests, call("u1"))
	require.Equal(t, http.StatusNoContent, call("u2"))
	require.Equal(t, http.StatusNoContent, call(""))
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, time.Minute)(func(w http.ResponseWriter, r *http.Request) {})
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"http://localhost:3000"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/conversations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	h.ServeHTTP(rec, req)

	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
