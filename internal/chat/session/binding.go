package session

import (
	"context"
	"sync"
	"time"

	"channah-support-chat/internal/chat/store"
	"channah-support-chat/internal/chat/transport"
	"channah-support-chat/internal/chat/typing"
	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/model"
	"channah-support-chat/pkg/logger"
)

// Pending is a locally sent message still waiting for its authoritative copy.
type Pending struct {
	LocalID string
	Content string
	SentAt  time.Time
}

// binding is everything tied to one selected conversation. Mutations happen on
// the controller loop; mu lets hosts read a consistent view from any goroutine.
type binding struct {
	id    string
	role  model.SenderRole
	token string
	log   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	api     API
	store   *store.Store
	typing  *typing.Signaler
	channel *transport.Channel

	mu      sync.RWMutex
	status  model.ConversationStatus
	pending []Pending
	claimed map[string]bool

	// loop-owned
	lastTyping bool
}

func (b *binding) active() bool {
	return b.ctx.Err() == nil
}

func (b *binding) addPending(p Pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, p)
}

func (b *binding) dropPending(localID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removePendingLocked(localID)
}

func (b *binding) removePendingLocked(localID string) bool {
	for i, p := range b.pending {
		if p.LocalID == localID {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return true
		}
	}
	return false
}

// reconcileLocked retires one pending entry for an authoritative message of
// the local role. preferLocalID names the entry that produced m, if known;
// otherwise the oldest entry with equal content is used. Each message id
// retires at most one entry.
func (b *binding) reconcileLocked(m dto.Message, preferLocalID string) {
	if b.claimed[m.ID] {
		return
	}
	if preferLocalID != "" && b.removePendingLocked(preferLocalID) {
		b.claimed[m.ID] = true
		return
	}
	if model.SenderRole(m.SenderRole) != b.role {
		return
	}
	for i, p := range b.pending {
		if p.Content == m.Content {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			b.claimed[m.ID] = true
			return
		}
	}
}

// advanceLocked moves the lifecycle forward and reports whether it changed.
func (b *binding) advanceLocked(next model.ConversationStatus) bool {
	updated, err := b.status.Advance(next)
	if err != nil || updated == b.status {
		return false
	}
	b.status = updated
	return true
}

// Handle is the host's read view of a connected conversation.
type Handle struct {
	b *binding
}

func (h *Handle) ConversationID() string {
	return h.b.id
}

// Messages returns the authoritative messages in server order.
func (h *Handle) Messages() []dto.Message {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	return h.b.store.Messages()
}

// Pending returns optimistic entries, rendered after Messages.
func (h *Handle) Pending() []Pending {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	return append([]Pending(nil), h.b.pending...)
}

// Snapshot returns messages and pending entries from one consistent moment.
func (h *Handle) Snapshot() ([]dto.Message, []Pending) {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	return h.b.store.Messages(), append([]Pending(nil), h.b.pending...)
}

func (h *Handle) Typing() bool {
	return h.b.typing.Typing()
}

func (h *Handle) Status() model.ConversationStatus {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	return h.b.status
}

// Closed reports whether the composer should be disabled.
func (h *Handle) Closed() bool {
	return h.Status() == model.ConversationStatusClosed
}

func (h *Handle) TransportState() transport.State {
	return h.b.channel.State()
}

// Active reports whether this handle still belongs to the controller's
// current conversation.
func (h *Handle) Active() bool {
	return h.b.active()
}
