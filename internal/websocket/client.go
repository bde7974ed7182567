package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"channah-support-chat/internal/protocol"
	"channah-support-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	authTimeout  = 10 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 512 * 1024
)

var errAuthRequired = errors.New("first frame must be auth")

// Client is one websocket connection bound to a conversation room. Only
// writePump writes to conn.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	id       string
	roomID   string
	identity Identity
	hub      *Hub
	log      *logger.Logger
}

func newClient(conn *websocket.Conn, roomID string, hub *Hub, log *logger.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 16),
		id:     id,
		roomID: roomID,
		hub:    hub,
		log:    log.With(zap.String("client_id", id), zap.String("room_id", roomID)),
	}
}

// serve runs the auth handshake and then the read loop on the calling
// goroutine.
func (cl *Client) serve(ctx context.Context, auth Authorizer) {
	identity, err := cl.authenticate(ctx, auth)
	if err != nil {
		incHandshakeFailures()
		cl.log.Info("websocket handshake rejected", zap.Error(err))
		deadline := time.Now().Add(time.Second)
		cl.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), deadline)
		cl.conn.Close()
		return
	}
	cl.identity = identity
	cl.log = cl.log.With(zap.String("user_id", identity.UserID), zap.String("role", identity.Role))

	if !cl.hub.join(cl) {
		cl.conn.Close()
		return
	}

	go cl.writePump()
	cl.readPump(ctx)
}

func (cl *Client) authenticate(ctx context.Context, auth Authorizer) (Identity, error) {
	cl.conn.SetReadLimit(readLimit)
	cl.conn.SetReadDeadline(time.Now().Add(authTimeout))

	_, data, err := cl.conn.ReadMessage()
	if err != nil {
		return Identity{}, fmt.Errorf("read auth frame: %w", err)
	}
	frame, err := protocol.Decode(data)
	if err != nil {
		return Identity{}, err
	}
	authFrame, ok := frame.(protocol.Auth)
	if !ok {
		return Identity{}, errAuthRequired
	}

	identity, err := auth.AuthorizeConversation(ctx, authFrame.Token, cl.roomID)
	if err != nil {
		return Identity{}, err
	}
	cl.conn.SetReadDeadline(time.Time{})
	return identity, nil
}

func (cl *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			cl.log.Error("recovered from panic in readPump", zap.Any("panic", r))
		}
		cl.hub.leave(cl)
		cl.conn.Close()
		cl.log.Debug("client disconnected")
	}()

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				cl.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			cl.log.Debug("ignoring client frame", zap.Error(err))
			continue
		}
		switch frame.(type) {
		case protocol.Typing:
			if err := cl.hub.Publish(ctx, cl.roomID, cl.id, protocol.MustEncode(protocol.Typing{})); err != nil {
				cl.log.Warn("typing relay failed", zap.Error(err))
				continue
			}
			incTypingRelayed()
		default:
			cl.log.Debug("ignoring client frame", zap.String("type", string(frame.Type())))
		}
	}
}

func (cl *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cl.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
