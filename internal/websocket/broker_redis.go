package websocket

import (
	"context"
	"fmt"

	"channah-support-chat/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisChannelPrefix = "chat:room:"

// RedisBroker relays room payloads over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisBroker(addr, password string, log *logger.Logger) *RedisBroker {
	return &RedisBroker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
		log: logger.OrGlobal(log).Named("redis-broker"),
	}
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, roomID string, payload []byte) error {
	if roomID == "" {
		return fmt.Errorf("redis publish: roomID required")
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+roomID, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(roomID string, deliver func([]byte)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.client.Subscribe(ctx, redisChannelPrefix+roomID)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", roomID, err)
	}

	go func() {
		for msg := range sub.Channel() {
			deliver([]byte(msg.Payload))
		}
		b.log.Debug("redis subscription ended", zap.String("room_id", roomID))
	}()

	return func() {
		cancel()
		sub.Close()
	}, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
