package auth

import (
	"context"
	"sync"

	"channah-support-chat/internal/model"
)

// MemoryRepository keeps users in process memory. It backs the server when
// CHAT_STORAGE=memory and the tests.
type MemoryRepository struct {
	mu      sync.Mutex
	users   map[string]model.UserItem
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string]model.UserItem),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryRepository) CreateUser(ctx context.Context, user model.UserItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.UserID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := m.byEmail[user.Email]; ok {
		return ErrAlreadyExists
	}
	m.users[user.UserID] = user
	m.byEmail[user.Email] = user.UserID
	return nil
}

func (m *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (model.UserItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return model.UserItem{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *MemoryRepository) GetUser(ctx context.Context, userID string) (model.UserItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return model.UserItem{}, ErrNotFound
	}
	return user, nil
}
