// Package chatlist keeps the conversation inbox fresh and hands the selected
// conversation to a session.
package chatlist

import (
	"context"
	"strings"
	"sync"
	"time"

	"channah-support-chat/internal/chat/chatapi"
	"channah-support-chat/internal/chat/credential"
	"channah-support-chat/internal/chat/session"
	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/model"
	"channah-support-chat/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultInterval = 10 * time.Second

type Lister interface {
	ListConversations(ctx context.Context) ([]dto.Conversation, error)
}

type Opener interface {
	Connect(ctx context.Context, conversationID string, cred credential.Credential, opts ...session.ConnectOption) (*session.Handle, error)
}

type Config struct {
	Lister     Lister
	Opener     Opener
	Credential credential.Credential
	Interval   time.Duration
	// ReturnPath is where the login prompt sends the user back to.
	ReturnPath string
	// OnChange, if set, is called after every refresh that succeeded.
	OnChange func([]dto.Conversation)
	Logger   *logger.Logger
}

type Controller struct {
	cfg Config
	log *logger.Logger

	mu      sync.RWMutex
	items   []dto.Conversation
	known   map[string]model.ConversationStatus
	opened  string
	fetched bool
}

func New(cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ReturnPath == "" {
		cfg.ReturnPath = "/chat"
	}
	return &Controller{
		cfg:   cfg,
		log:   logger.OrGlobal(cfg.Logger).Named("chatlist"),
		known: make(map[string]model.ConversationStatus),
	}
}

// Refresh fetches the list for the signed-in identity. Locally known
// lifecycle progress is never rolled back and the open conversation keeps an
// unread count of zero.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.cfg.Credential.Valid() {
		return &chatapi.LoginRequiredError{ReturnPath: c.cfg.ReturnPath, Reason: chatapi.ReasonMissingToken}
	}
	list, err := c.cfg.Lister.ListConversations(ctx)
	if err != nil {
		return chatapi.RequireLogin(c.cfg.ReturnPath, errors.Wrap(err, "list conversations"))
	}

	c.mu.Lock()
	items := make([]dto.Conversation, 0, len(list))
	for _, conv := range list {
		status := model.Later(c.known[conv.ID], model.ConversationStatus(conv.Status))
		c.known[conv.ID] = status
		conv.Status = string(status)
		if conv.UnreadCount < 0 || conv.ID == c.opened {
			conv.UnreadCount = 0
		}
		items = append(items, conv)
	}
	c.items = items
	c.fetched = true
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.cfg.OnChange != nil {
		c.cfg.OnChange(snapshot)
	}
	return nil
}

// Run refreshes immediately and then on every interval until ctx is done.
// Refresh errors are logged; a login error stops the loop.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, chatapi.ErrUnauthenticated) {
				return err
			}
			c.log.Warn("conversation list refresh failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Open connects a session to the conversation. Once connected, its unread
// count stays zero locally until another conversation is opened.
func (c *Controller) Open(ctx context.Context, conversationID string) (*session.Handle, error) {
	c.mu.RLock()
	status := c.known[conversationID]
	c.mu.RUnlock()

	var opts []session.ConnectOption
	if status.Valid() {
		opts = append(opts, session.WithStatus(status))
	}
	h, err := c.cfg.Opener.Connect(ctx, conversationID, c.cfg.Credential, opts...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.opened = conversationID
	for i := range c.items {
		if c.items[i].ID == conversationID {
			c.items[i].UnreadCount = 0
		}
	}
	c.mu.Unlock()
	return h, nil
}

// MarkClosed records a close observed by the session so the list reflects it
// before the next refresh.
func (c *Controller) MarkClosed(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[conversationID] = model.ConversationStatusClosed
	for i := range c.items {
		if c.items[i].ID == conversationID {
			c.items[i].Status = string(model.ConversationStatusClosed)
		}
	}
}

// Items returns the list in server order (newest first).
func (c *Controller) Items() []dto.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) Get(conversationID string) (dto.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, conv := range c.items {
		if conv.ID == conversationID {
			return conv, true
		}
	}
	return dto.Conversation{}, false
}

// Fetched reports whether at least one refresh succeeded.
func (c *Controller) Fetched() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

func (c *Controller) Filter(status string) []dto.Conversation {
	return c.Query(status, "")
}

func (c *Controller) Search(text string) []dto.Conversation {
	return c.Query("", text)
}

// Query filters by status ("" or "all" for any) and by a case-insensitive
// substring of the subject, customer name or customer email.
func (c *Controller) Query(status, text string) []dto.Conversation {
	status = strings.ToLower(strings.TrimSpace(status))
	needle := strings.ToLower(strings.TrimSpace(text))

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]dto.Conversation, 0, len(c.items))
	for _, conv := range c.items {
		if status != "" && status != "all" && conv.Status != status {
			continue
		}
		if needle != "" && !matches(conv, needle) {
			continue
		}
		out = append(out, conv)
	}
	return out
}

func matches(conv dto.Conversation, needle string) bool {
	for _, field := range []string{conv.Subject, conv.CustomerName, conv.CustomerEmail} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (c *Controller) snapshotLocked() []dto.Conversation {
	return append([]dto.Conversation(nil), c.items...)
}
