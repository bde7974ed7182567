package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"channah-support-chat/internal/model"
)

// UserSource resolves the users a conversation refers to.
type UserSource interface {
	GetUser(ctx context.Context, userID string) (model.UserItem, error)
}

// MemoryRepository keeps conversations and messages in process memory.
type MemoryRepository struct {
	users UserSource

	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
}

func NewMemoryRepository(users UserSource) *MemoryRepository {
	return &MemoryRepository{
		users:         users,
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (m *MemoryRepository) GetUser(ctx context.Context, userID string) (model.UserItem, error) {
	if m.users == nil {
		return model.UserItem{}, ErrNotFound
	}
	user, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return model.UserItem{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return user, nil
}

func (m *MemoryRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conversation.PK]; ok {
		return fmt.Errorf("conversation %s already exists", conversation.ConversationID)
	}
	m.conversations[conversation.PK] = conversation
	return nil
}

func (m *MemoryRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[model.ConversationPK(conversationID)]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (m *MemoryRepository) ListConversationsByCustomer(ctx context.Context, customerID string) ([]model.ConversationItem, error) {
	return m.list(func(c model.ConversationItem) bool { return c.CustomerID == customerID }), nil
}

func (m *MemoryRepository) ListAllConversations(ctx context.Context) ([]model.ConversationItem, error) {
	return m.list(func(model.ConversationItem) bool { return true }), nil
}

func (m *MemoryRepository) list(keep func(model.ConversationItem) bool) []model.ConversationItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ConversationItem, 0, len(m.conversations))
	for _, c := range m.conversations {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt == out[j].LastMessageAt {
			return out[i].ConversationID > out[j].ConversationID
		}
		return out[i].LastMessageAt > out[j].LastMessageAt
	})
	return out
}

func (m *MemoryRepository) UpdateConversationActivity(ctx context.Context, conversationID string, update ActivityUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	if conversation.Status == model.ConversationStatusClosed {
		return ErrAlreadyClosed
	}
	conversation.UpdatedAt = update.UpdatedAt
	conversation.LastMessageAt = update.LastMessageAt
	if update.Status != "" {
		conversation.Status = update.Status
	}
	if update.AgentID != "" {
		conversation.AgentID = update.AgentID
	}
	m.conversations[pk] = conversation
	return nil
}

func (m *MemoryRepository) CloseConversation(ctx context.Context, conversationID, closedAt, closedBy string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	if conversation.Status == model.ConversationStatusClosed {
		return model.ConversationItem{}, ErrAlreadyClosed
	}
	conversation.Status = model.ConversationStatusClosed
	conversation.ClosedAt = closedAt
	conversation.ClosedBy = closedBy
	conversation.UpdatedAt = closedAt
	m.conversations[pk] = conversation
	return conversation, nil
}

func (m *MemoryRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append(m.messages[message.ConversationID], message)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SK < msgs[j].SK })
	m.messages[message.ConversationID] = msgs
	return nil
}

func (m *MemoryRepository) ListMessages(ctx context.Context, conversationID string) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	out := make([]model.MessageItem, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryRepository) MarkMessagesRead(ctx context.Context, conversationID string, sortKeys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	read := make(map[string]bool, len(sortKeys))
	for _, sk := range sortKeys {
		read[sk] = true
	}
	msgs := m.messages[conversationID]
	for i := range msgs {
		if read[msgs[i].SK] {
			msgs[i].IsRead = true
		}
	}
	return nil
}
