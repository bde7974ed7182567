package websocket

import (
	"context"
	"sync"
)

// Broker fans room payloads out to every gateway instance.
type Broker interface {
	Publish(ctx context.Context, roomID string, payload []byte) error
	// Subscribe delivers payloads for roomID until the returned cancel func is
	// called.
	Subscribe(roomID string, deliver func([]byte)) (func(), error)
	// Ping reports whether the broker can currently fan out.
	Ping(ctx context.Context) error
	Close() error
}

// LocalBroker delivers within the process. It backs single-instance
// deployments and tests.
type LocalBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func([]byte)
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[int]func([]byte))}
}

func (b *LocalBroker) Publish(_ context.Context, roomID string, payload []byte) error {
	b.mu.RLock()
	targets := make([]func([]byte), 0, len(b.subs[roomID]))
	for _, fn := range b.subs[roomID] {
		targets = append(targets, fn)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(payload)
	}
	return nil
}

func (b *LocalBroker) Subscribe(roomID string, deliver func([]byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[int]func([]byte))
	}
	b.subs[roomID][id] = deliver

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[roomID], id)
		if len(b.subs[roomID]) == 0 {
			delete(b.subs, roomID)
		}
	}, nil
}

func (b *LocalBroker) Ping(context.Context) error {
	return nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]func([]byte))
	return nil
}
