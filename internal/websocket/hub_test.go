package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/protocol"
	"channah-support-chat/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func allowTokens(tokens map[string]Identity) Authorizer {
	return AuthorizerFunc(func(_ context.Context, token, conversationID string) (Identity, error) {
		id, ok := tokens[token]
		if !ok || conversationID != "c1" {
			return Identity{}, errors.New("forbidden")
		}
		return id, nil
	})
}

func startGateway(t *testing.T) (*Hub, *Publisher, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(NewLocalBroker(), logger.Nop())
	go hub.Run(ctx)

	handler := NewHandler(ctx, hub, allowTokens(map[string]Identity{
		"customer-token": {UserID: "u-customer", Role: "customer"},
		"agent-token":    {UserID: "u-agent", Role: "agent"},
	}), logger.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.JoinConversation(w, r, strings.TrimPrefix(r.URL.Path, "/ws/conversation/"))
	}))
	t.Cleanup(srv.Close)

	return hub, NewPublisher(hub, logger.Nop()), "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversation/"
}

func dial(t *testing.T, base, conversationID, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+conversationID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(protocol.Auth{Token: token})))
	return conn
}

func waitForClients(t *testing.T, hub *Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, r := range hub.Rooms() {
			if r.ID == room && r.Clients == n {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.Decode(data)
	require.NoError(t, err)
	return frame
}

func TestPublishedMessageReachesRoom(t *testing.T) {
	hub, pub, base := startGateway(t)
	conn := dial(t, base, "c1", "customer-token")
	waitForClients(t, hub, "c1", 1)

	pub.MessageCreated(context.Background(), dto.Message{ID: "m1", ConversationID: "c1", SenderRole: "agent", Content: "On it"})

	frame := readFrame(t, conn)
	nm, ok := frame.(protocol.NewMessage)
	require.True(t, ok)
	require.Equal(t, "m1", nm.Message.ID)

	pub.ConversationClosed(context.Background(), "c1")
	require.IsType(t, protocol.ChatClosed{}, readFrame(t, conn))
}

func TestTypingRelayedToOthersOnly(t *testing.T) {
	hub, pub, base := startGateway(t)
	customer := dial(t, base, "c1", "customer-token")
	agent := dial(t, base, "c1", "agent-token")
	waitForClients(t, hub, "c1", 2)

	require.NoError(t, agent.WriteMessage(websocket.TextMessage, protocol.MustEncode(protocol.Typing{})))
	require.IsType(t, protocol.Typing{}, readFrame(t, customer))

	// the sender's next frame is the message, not its own typing echo
	pub.MessageCreated(context.Background(), dto.Message{ID: "m2", ConversationID: "c1"})
	require.IsType(t, protocol.NewMessage{}, readFrame(t, agent))
}

func TestRejectsConnectionWithoutValidAuth(t *testing.T) {
	hub, _, base := startGateway(t)

	conn := dial(t, base, "c1", "stolen-token")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	other, _, err := websocket.DefaultDialer.Dial(base+"c1", nil)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.WriteMessage(websocket.TextMessage, protocol.MustEncode(protocol.Typing{})))
	other.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = other.ReadMessage()
	require.Error(t, err)

	require.Empty(t, hub.Rooms())
}

func TestRoomClosesWhenLastClientLeaves(t *testing.T) {
	hub, _, base := startGateway(t)
	conn := dial(t, base, "c1", "customer-token")
	waitForClients(t, hub, "c1", 1)

	conn.Close()
	require.Eventually(t, func() bool { return len(hub.Rooms()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLocalBrokerUnsubscribe(t *testing.T) {
	b := NewLocalBroker()
	got := 0
	cancel, err := b.Subscribe("r1", func([]byte) { got++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "r1", []byte("x")))
	require.NoError(t, b.Publish(context.Background(), "r2", []byte("x")))
	cancel()
	require.NoError(t, b.Publish(context.Background(), "r1", []byte("x")))

	require.Equal(t, 1, got)
}
