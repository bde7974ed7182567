package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRealClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	require.Equal(t, "10.0.0.7", RealClientIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.2")
	require.Equal(t, "172.16.0.2", RealClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", RealClientIP(r))
}

func TestRequestIDKeepsCallerValue(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	require.NotEmpty(t, RequestID(r))

	r.Header.Set(RequestIDHeader, "req-42")
	require.Equal(t, "req-42", RequestID(r))
}
