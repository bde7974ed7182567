package websocket

import (
	"context"
	"fmt"
	"time"

	"channah-support-chat/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsSubjectPrefix = "chat.room."

// NATSBroker relays room payloads over core NATS subjects.
type NATSBroker struct {
	conn *nats.Conn
	log  *logger.Logger
}

func NewNATSBroker(url, token string, log *logger.Logger) (*NATSBroker, error) {
	log = logger.OrGlobal(log).Named("nats-broker")
	opts := []nats.Option{
		nats.Name("chat-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBroker{conn: nc, log: log}, nil
}

// Ping round-trips to the server.
func (b *NATSBroker) Ping(ctx context.Context) error {
	if err := b.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (b *NATSBroker) Publish(_ context.Context, roomID string, payload []byte) error {
	if err := b.conn.Publish(natsSubjectPrefix+roomID, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBroker) Subscribe(roomID string, deliver func([]byte)) (func(), error) {
	sub, err := b.conn.Subscribe(natsSubjectPrefix+roomID, func(msg *nats.Msg) {
		deliver(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", roomID, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Debug("nats unsubscribe failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}, nil
}

func (b *NATSBroker) Close() error {
	b.conn.Close()
	return nil
}
