package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"channah-support-chat/internal/dto"
	"channah-support-chat/pkg/logger"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestListMessagesSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/conversation/c1/messages", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]dto.Message{{ID: "m1", ConversationID: "c1", Content: "hi"}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1", WithToken("tok"), WithLogger(logger.Nop()))
	list, err := c.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "m1", list[0].ID)
}

func TestSendMessagePostsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req dto.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(dto.Message{ID: "m9", ConversationID: "c1", Content: req.Content})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	msg, err := c.SendMessage(context.Background(), "c1", "Where is my order?")
	require.NoError(t, err)
	require.Equal(t, "Where is my order?", msg.Content)
}

func TestMissingTokenNeverHitsNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListConversations(context.Background())

	var lr *LoginRequiredError
	require.True(t, errors.As(err, &lr))
	require.Equal(t, ReasonMissingToken, lr.Reason)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Zero(t, hits)
}

func TestErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversation/c1/close":
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(dto.ApiError{Message: "conversation already closed"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(dto.ApiError{Message: "Unauthorized"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("expired"))

	_, err := c.CloseConversation(context.Background(), "c1")
	require.True(t, IsStatus(err, http.StatusConflict))
	require.Contains(t, err.Error(), "already closed")
	require.NotErrorIs(t, err, ErrUnauthenticated)

	_, err = c.ListConversations(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)

	err = RequireLogin("/chat/c1", err)
	var lr *LoginRequiredError
	require.True(t, errors.As(err, &lr))
	require.Equal(t, "/chat/c1", lr.ReturnPath)
	require.Equal(t, ReasonTokenRejected, lr.Reason)
}

func TestRequireLoginFillsReturnPath(t *testing.T) {
	err := RequireLogin("/chat", &LoginRequiredError{Reason: ReasonMissingToken})
	var lr *LoginRequiredError
	require.True(t, errors.As(err, &lr))
	require.Equal(t, "/chat", lr.ReturnPath)

	other := errors.New("boom")
	require.Equal(t, other, RequireLogin("/chat", other))
	require.NoError(t, RequireLogin("/chat", nil))
}

func TestWithCredentialCopies(t *testing.T) {
	base := New("http://example.invalid")
	authed := base.WithCredential("tok")

	require.False(t, base.HasCredential())
	require.True(t, authed.HasCredential())
}
