package conversation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"channah-support-chat/internal/database"
	"channah-support-chat/internal/model"

	"github.com/google/uuid"
)

const (
	maxContentLength = 4000
	maxSubjectLength = 120
	// derived subjects are cut from the first message
	derivedSubjectLength = 60
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

func (s *Service) CreateConversation(ctx context.Context, identity Identity, params CreateConversationParams) (ConversationResult, error) {
	if err := validateIdentity(identity); err != nil {
		return ConversationResult{}, err
	}
	if identity.Role != model.RoleCustomer {
		return ConversationResult{}, newError(ErrorCodeForbidden, "only customers can start conversations", nil)
	}

	content, err := validateContent(params.Message)
	if err != nil {
		return ConversationResult{}, err
	}
	subject := strings.TrimSpace(params.Subject)
	if subject == "" {
		subject = truncate(content, derivedSubjectLength)
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return ConversationResult{}, newError(ErrorCodeValidation, "subject is too long", nil)
	}

	user, err := s.repo.GetUser(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ConversationResult{}, newError(ErrorCodeUnauthorized, "user not found", err)
		}
		return ConversationResult{}, newError(ErrorCodeInternal, "failed to verify user", err)
	}

	now := s.now().UTC()
	nowStr := model.Timestamp(now)
	conversationID := uuid.NewString()

	conversation := model.ConversationItem{
		PK:             model.ConversationPK(conversationID),
		ConversationID: conversationID,
		Subject:        subject,
		CustomerID:     user.UserID,
		CustomerName:   user.Name,
		CustomerEmail:  user.Email,
		Status:         model.ConversationStatusOpen,
		Scope:          model.ConversationScopeAll,
		CreatedAt:      nowStr,
		UpdatedAt:      nowStr,
		LastMessageAt:  nowStr,
	}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return ConversationResult{}, newError(ErrorCodeInternal, "failed to create conversation", err)
	}

	message := newMessage(conversationID, identity, content, now)
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return ConversationResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	return ConversationResult{
		Conversation: conversation,
		Message:      message,
	}, nil
}

// ListConversations returns the customer's own conversations, or every
// conversation for an agent, most recent activity first. Unread counts only
// include messages sent by the other side.
func (s *Service) ListConversations(ctx context.Context, identity Identity) ([]ConversationSummary, error) {
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	var (
		conversations []model.ConversationItem
		err           error
	)
	if identity.Role == model.RoleAgent {
		conversations, err = s.repo.ListAllConversations(ctx)
	} else {
		conversations, err = s.repo.ListConversationsByCustomer(ctx, identity.UserID)
	}
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list conversations", err)
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		messages, err := s.repo.ListMessages(ctx, conversation.ConversationID)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to list messages", err)
		}

		summary := ConversationSummary{Conversation: conversation}
		for _, msg := range messages {
			if !msg.IsRead && msg.SenderRole != identity.Role {
				summary.UnreadCount++
			}
		}
		if len(messages) > 0 {
			last := messages[len(messages)-1]
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ListMessages returns the conversation history in ascending order and marks
// the other side's messages as read.
func (s *Service) ListMessages(ctx context.Context, identity Identity, conversationID string) (ListMessagesResult, error) {
	conversation, err := s.Authorize(ctx, identity, conversationID)
	if err != nil {
		return ListMessagesResult{}, err
	}

	messages, err := s.repo.ListMessages(ctx, conversation.ConversationID)
	if err != nil {
		return ListMessagesResult{}, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	unread := make([]string, 0)
	for i := range messages {
		if !messages[i].IsRead && messages[i].SenderRole != identity.Role {
			unread = append(unread, messages[i].SK)
			messages[i].IsRead = true
		}
	}
	if len(unread) > 0 {
		if err := s.repo.MarkMessagesRead(ctx, conversation.ConversationID, unread); err != nil {
			return ListMessagesResult{}, newError(ErrorCodeInternal, "failed to mark messages read", err)
		}
	}

	return ListMessagesResult{
		Conversation: conversation,
		Messages:     messages,
	}, nil
}

// PostMessage stores a message from either participant. The first agent
// reply moves an open conversation to active and assigns that agent.
func (s *Service) PostMessage(ctx context.Context, identity Identity, conversationID, content string) (MessageResult, error) {
	content, err := validateContent(content)
	if err != nil {
		return MessageResult{}, err
	}

	conversation, err := s.Authorize(ctx, identity, conversationID)
	if err != nil {
		return MessageResult{}, err
	}
	if conversation.Status == model.ConversationStatusClosed {
		return MessageResult{}, newError(ErrorCodeConflict, "conversation is closed", nil)
	}

	now := s.now().UTC()
	nowStr := model.Timestamp(now)

	update := ActivityUpdate{UpdatedAt: nowStr, LastMessageAt: nowStr}
	activated := false
	if identity.Role == model.RoleAgent {
		if conversation.Status == model.ConversationStatusOpen {
			next, err := conversation.Status.Advance(model.ConversationStatusActive)
			if err != nil {
				return MessageResult{}, newError(ErrorCodeInternal, "failed to advance conversation", err)
			}
			update.Status = next
			activated = true
		}
		if conversation.AgentID == "" {
			update.AgentID = identity.UserID
		}
	}

	if err := s.repo.UpdateConversationActivity(ctx, conversation.ConversationID, update); err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return MessageResult{}, newError(ErrorCodeConflict, "conversation is closed", err)
		}
		return MessageResult{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	message := newMessage(conversation.ConversationID, identity, content, now)
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	conversation.UpdatedAt = nowStr
	conversation.LastMessageAt = nowStr
	if update.Status != "" {
		conversation.Status = update.Status
	}
	if update.AgentID != "" {
		conversation.AgentID = update.AgentID
	}

	return MessageResult{
		Conversation: conversation,
		Message:      message,
		Activated:    activated,
	}, nil
}

// CloseConversation moves a conversation to its terminal status. Only agents
// may close; closing twice is a conflict.
func (s *Service) CloseConversation(ctx context.Context, identity Identity, conversationID string) (model.ConversationItem, error) {
	conversation, err := s.Authorize(ctx, identity, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}
	if identity.Role != model.RoleAgent {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "only agents can close conversations", nil)
	}
	if conversation.Status == model.ConversationStatusClosed {
		return model.ConversationItem{}, newError(ErrorCodeConflict, "conversation is already closed", nil)
	}

	closed, err := s.repo.CloseConversation(ctx, conversation.ConversationID, model.Timestamp(s.now()), identity.UserID)
	if err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return model.ConversationItem{}, newError(ErrorCodeConflict, "conversation is already closed", err)
		}
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to close conversation", err)
	}
	return closed, nil
}

// Authorize loads the conversation and checks identity may take part in it.
// Customers only reach their own conversations; agents reach all of them.
func (s *Service) Authorize(ctx context.Context, identity Identity, conversationID string) (model.ConversationItem, error) {
	if err := validateIdentity(identity); err != nil {
		return model.ConversationItem{}, err
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to fetch conversation", err)
	}

	if identity.Role == model.RoleCustomer && conversation.CustomerID != identity.UserID {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "conversation belongs to another customer", nil)
	}
	return conversation, nil
}

func newMessage(conversationID string, identity Identity, content string, now time.Time) model.MessageItem {
	messageID := uuid.NewString()
	return model.MessageItem{
		ConversationID: conversationID,
		SK:             model.MessageSK(now, messageID),
		MessageID:      messageID,
		SenderRole:     identity.Role,
		SenderID:       identity.UserID,
		Content:        content,
		CreatedAt:      model.Timestamp(now),
	}
}

func validateIdentity(identity Identity) error {
	if strings.TrimSpace(identity.UserID) == "" || !identity.Role.Valid() {
		return newError(ErrorCodeUnauthorized, "invalid user identity", nil)
	}
	return nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", newError(ErrorCodeValidation, "message content is required", nil)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", newError(ErrorCodeValidation, "message content is too long", nil)
	}
	return content, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}
