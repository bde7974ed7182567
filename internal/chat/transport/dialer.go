package transport

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Conn is the subset of *websocket.Conn the channel uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, conversationID string) (Conn, error)
}

// WebsocketDialer opens {BaseURL}/conversation/{id} with gorilla/websocket.
type WebsocketDialer struct {
	BaseURL string
	Header  http.Header
	Dialer  *websocket.Dialer
}

func NewWebsocketDialer(baseURL string) *WebsocketDialer {
	return &WebsocketDialer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Dialer:  websocket.DefaultDialer,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, conversationID string) (Conn, error) {
	target := d.BaseURL + "/conversation/" + url.PathEscape(conversationID)
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", target)
	}
	conn.SetReadLimit(512 * 1024)
	return conn, nil
}
