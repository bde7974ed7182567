// Package store holds the ordered, deduplicated message list of one conversation.
package store

import (
	"sync"

	"channah-support-chat/internal/dto"
)

// Store keeps messages in the order the chat API returned them. It never sorts;
// it only decides whether incoming data is applied.
type Store struct {
	conversationID string

	mu       sync.RWMutex
	messages []dto.Message
	ids      map[string]int
}

func New(conversationID string) *Store {
	return &Store{
		conversationID: conversationID,
		ids:            make(map[string]int),
	}
}

func (s *Store) ConversationID() string {
	return s.conversationID
}

// Insert appends m unless a message with the same id is already present or m
// belongs to another conversation. Push delivery is at-least-once, so repeated
// inserts of one message are no-ops.
func (s *Store) Insert(m dto.Message) bool {
	if m.ID == "" || !s.owns(m) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[m.ID]; exists {
		return false
	}
	s.ids[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
	return true
}

// MergeList applies a full poll result. The list replaces the current state
// only when it is at least as long, so a stale response cannot roll the
// conversation backwards. It reports whether the visible list changed.
func (s *Store) MergeList(list []dto.Message) bool {
	for _, m := range list {
		if !s.owns(m) {
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(list) < len(s.messages) {
		return false
	}
	if sameIDs(s.messages, list) {
		for i := range list {
			s.messages[i].IsRead = s.messages[i].IsRead || list[i].IsRead
		}
		return false
	}

	s.messages = make([]dto.Message, len(list))
	copy(s.messages, list)
	s.ids = make(map[string]int, len(list))
	for i, m := range s.messages {
		s.ids[m.ID] = i
	}
	return true
}

// MarkRead sets the read flag, the only field the client mutates.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.ids[id]
	if !ok || s.messages[idx].IsRead {
		return false
	}
	s.messages[idx].IsRead = true
	return true
}

func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Messages returns a copy of the current list.
func (s *Store) Messages() []dto.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) owns(m dto.Message) bool {
	return m.ConversationID == "" || m.ConversationID == s.conversationID
}

func sameIDs(a, b []dto.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
