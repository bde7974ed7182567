package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"channah-support-chat/internal/model"

	"github.com/stretchr/testify/require"
)

type staticUsers map[string]model.UserItem

func (u staticUsers) GetUser(ctx context.Context, userID string) (model.UserItem, error) {
	user, ok := u[userID]
	if !ok {
		return model.UserItem{}, ErrNotFound
	}
	return user, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var (
	customer      = Identity{UserID: "cust-1", Email: "dana@example.com", Role: model.RoleCustomer}
	otherCustomer = Identity{UserID: "cust-2", Email: "lee@example.com", Role: model.RoleCustomer}
	agent         = Identity{UserID: "agent-1", Email: "sam@example.com", Role: model.RoleAgent}
)

func newTestService() *Service {
	users := staticUsers{
		"cust-1":  {UserID: "cust-1", Name: "Dana", Email: "dana@example.com", Role: model.RoleCustomer},
		"cust-2":  {UserID: "cust-2", Name: "Lee", Email: "lee@example.com", Role: model.RoleCustomer},
		"agent-1": {UserID: "agent-1", Name: "Sam", Email: "sam@example.com", Role: model.RoleAgent},
	}
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewWithRepository(NewMemoryRepository(users), clock.Now)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsCode(err, code), "expected %s, got %v", code, err)
}

func TestCreateConversationStartsOpen(t *testing.T) {
	svc := newTestService()

	result, err := svc.CreateConversation(context.Background(), customer, CreateConversationParams{
		Message: "  Where is my order? It was due on Monday and the tracking page has not moved since.  ",
	})
	require.NoError(t, err)

	conv := result.Conversation
	require.Equal(t, model.ConversationStatusOpen, conv.Status)
	require.Equal(t, "Dana", conv.CustomerName)
	require.Equal(t, "dana@example.com", conv.CustomerEmail)
	require.LessOrEqual(t, len([]rune(conv.Subject)), derivedSubjectLength+3)
	require.Equal(t, model.RoleCustomer, result.Message.SenderRole)
	require.Equal(t, "Where is my order? It was due on Monday and the tracking page has not moved since.", result.Message.Content)
}

func TestCreateConversationRequiresCustomer(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateConversation(context.Background(), agent, CreateConversationParams{Message: "hi"})
	requireCode(t, err, ErrorCodeForbidden)

	_, err = svc.CreateConversation(context.Background(), customer, CreateConversationParams{Message: "   "})
	requireCode(t, err, ErrorCodeValidation)

	_, err = svc.CreateConversation(context.Background(), Identity{UserID: "ghost", Role: model.RoleCustomer}, CreateConversationParams{Message: "hi"})
	requireCode(t, err, ErrorCodeUnauthorized)
}

func TestAgentReplyActivatesConversation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, customer, CreateConversationParams{Subject: "Shipping delay", Message: "Where is my order?"})
	require.NoError(t, err)
	id := created.Conversation.ConversationID

	reply, err := svc.PostMessage(ctx, agent, id, "Checking with the courier now.")
	require.NoError(t, err)
	require.True(t, reply.Activated)
	require.Equal(t, model.ConversationStatusActive, reply.Conversation.Status)
	require.Equal(t, agent.UserID, reply.Conversation.AgentID)

	second, err := svc.PostMessage(ctx, agent, id, "It ships tomorrow.")
	require.NoError(t, err)
	require.False(t, second.Activated)

	history, err := svc.ListMessages(ctx, customer, id)
	require.NoError(t, err)
	require.Equal(t, model.ConversationStatusActive, history.Conversation.Status)
	require.Len(t, history.Messages, 3)
	require.Equal(t, "Where is my order?", history.Messages[0].Content)
	require.Equal(t, "Checking with the courier now.", history.Messages[1].Content)
	require.Equal(t, "It ships tomorrow.", history.Messages[2].Content)
}

func TestUnreadCountsOnlyOtherSide(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, customer, CreateConversationParams{Message: "Hello"})
	require.NoError(t, err)
	id := created.Conversation.ConversationID
	_, err = svc.PostMessage(ctx, agent, id, "Hi Dana")
	require.NoError(t, err)

	list, err := svc.ListConversations(ctx, customer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].UnreadCount)
	require.Equal(t, "Hi Dana", list[0].LastMessage.Content)

	agentList, err := svc.ListConversations(ctx, agent)
	require.NoError(t, err)
	require.Equal(t, 1, agentList[0].UnreadCount)

	_, err = svc.ListMessages(ctx, customer, id)
	require.NoError(t, err)

	list, err = svc.ListConversations(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, 0, list[0].UnreadCount)
}

func TestCustomersOnlySeeOwnConversations(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	mine, err := svc.CreateConversation(ctx, customer, CreateConversationParams{Message: "first"})
	require.NoError(t, err)
	theirs, err := svc.CreateConversation(ctx, otherCustomer, CreateConversationParams{Message: "second"})
	require.NoError(t, err)

	list, err := svc.ListConversations(ctx, customer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mine.Conversation.ConversationID, list[0].Conversation.ConversationID)

	_, err = svc.ListMessages(ctx, customer, theirs.Conversation.ConversationID)
	requireCode(t, err, ErrorCodeForbidden)

	_, err = svc.PostMessage(ctx, customer, theirs.Conversation.ConversationID, "hello?")
	requireCode(t, err, ErrorCodeForbidden)

	_, err = svc.ListMessages(ctx, customer, "missing")
	requireCode(t, err, ErrorCodeNotFound)

	all, err := svc.ListConversations(ctx, agent)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, theirs.Conversation.ConversationID, all[0].Conversation.ConversationID, "newest activity first")
}

func TestCloseConversationIsAgentOnlyAndTerminal(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, customer, CreateConversationParams{Message: "Refund please"})
	require.NoError(t, err)
	id := created.Conversation.ConversationID

	_, err = svc.CloseConversation(ctx, customer, id)
	requireCode(t, err, ErrorCodeForbidden)

	closed, err := svc.CloseConversation(ctx, agent, id)
	require.NoError(t, err)
	require.Equal(t, model.ConversationStatusClosed, closed.Status)
	require.Equal(t, agent.UserID, closed.ClosedBy)

	_, err = svc.CloseConversation(ctx, agent, id)
	requireCode(t, err, ErrorCodeConflict)

	_, err = svc.PostMessage(ctx, customer, id, "Are you still there?")
	requireCode(t, err, ErrorCodeConflict)

	_, err = svc.PostMessage(ctx, agent, id, "Reopening")
	requireCode(t, err, ErrorCodeConflict)
}

func TestPostMessageValidatesContent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, customer, CreateConversationParams{Message: "Hello"})
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, customer, created.Conversation.ConversationID, " \n ")
	requireCode(t, err, ErrorCodeValidation)

	_, err = svc.PostMessage(ctx, Identity{}, created.Conversation.ConversationID, "hi")
	requireCode(t, err, ErrorCodeUnauthorized)
}
