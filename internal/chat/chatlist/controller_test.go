package chatlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"channah-support-chat/internal/chat/chatapi"
	"channah-support-chat/internal/chat/credential"
	"channah-support-chat/internal/chat/session"
	"channah-support-chat/internal/dto"
	"channah-support-chat/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu    sync.Mutex
	list  []dto.Conversation
	err   error
	calls int
}

func (f *fakeLister) ListConversations(context.Context) ([]dto.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]dto.Conversation(nil), f.list...), nil
}

func (f *fakeLister) set(list []dto.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOpener struct {
	id   string
	opts int
	err  error
}

func (f *fakeOpener) Connect(_ context.Context, id string, _ credential.Credential, opts ...session.ConnectOption) (*session.Handle, error) {
	f.id = id
	f.opts = len(opts)
	return nil, f.err
}

func inbox() []dto.Conversation {
	return []dto.Conversation{
		{ID: "c3", Status: "open", Subject: "Refund request", CustomerName: "Dana Shore", CustomerEmail: "dana@example.com", UnreadCount: 2},
		{ID: "c2", Status: "active", Subject: "Shipping delay", CustomerName: "Lee Park", CustomerEmail: "lee@example.com", UnreadCount: 1},
		{ID: "c1", Status: "closed", Subject: "Invoice copy", CustomerName: "Sam Ode", CustomerEmail: "sam@shop.test"},
	}
}

func newController(l *fakeLister, o *fakeOpener) *Controller {
	return New(Config{
		Lister:     l,
		Opener:     o,
		Credential: credential.Credential{Token: "tok", Role: "agent"},
		Interval:   20 * time.Millisecond,
		Logger:     logger.Nop(),
	})
}

func TestRefreshKeepsServerOrder(t *testing.T) {
	l := &fakeLister{list: inbox()}
	c := newController(l, &fakeOpener{})

	require.NoError(t, c.Refresh(context.Background()))
	items := c.Items()
	require.Equal(t, []string{"c3", "c2", "c1"}, []string{items[0].ID, items[1].ID, items[2].ID})
	require.True(t, c.Fetched())
}

func TestOpenZeroesUnreadAcrossRefreshes(t *testing.T) {
	l := &fakeLister{list: inbox()}
	o := &fakeOpener{}
	c := newController(l, o)
	require.NoError(t, c.Refresh(context.Background()))

	_, err := c.Open(context.Background(), "c3")
	require.NoError(t, err)
	require.Equal(t, "c3", o.id)
	require.Equal(t, 1, o.opts)

	conv, ok := c.Get("c3")
	require.True(t, ok)
	require.Zero(t, conv.UnreadCount)

	require.NoError(t, c.Refresh(context.Background()))
	conv, _ = c.Get("c3")
	require.Zero(t, conv.UnreadCount)
	other, _ := c.Get("c2")
	require.Equal(t, 1, other.UnreadCount)
}

func TestFailedOpenKeepsUnreadCount(t *testing.T) {
	l := &fakeLister{list: inbox()}
	o := &fakeOpener{err: &chatapi.APIError{StatusCode: 404, Message: "conversation not found"}}
	c := newController(l, o)
	require.NoError(t, c.Refresh(context.Background()))

	_, err := c.Open(context.Background(), "c3")
	require.True(t, chatapi.IsStatus(err, 404))

	conv, _ := c.Get("c3")
	require.Equal(t, 2, conv.UnreadCount)

	require.NoError(t, c.Refresh(context.Background()))
	conv, _ = c.Get("c3")
	require.Equal(t, 2, conv.UnreadCount)
}

func TestRefreshNeverRegressesStatus(t *testing.T) {
	l := &fakeLister{list: inbox()}
	c := newController(l, &fakeOpener{})
	require.NoError(t, c.Refresh(context.Background()))

	c.MarkClosed("c3")
	conv, _ := c.Get("c3")
	require.Equal(t, "closed", conv.Status)

	stale := inbox()
	stale[1].Status = "open"
	stale[1].UnreadCount = -4
	l.set(stale)
	require.NoError(t, c.Refresh(context.Background()))

	conv, _ = c.Get("c3")
	require.Equal(t, "closed", conv.Status)
	conv, _ = c.Get("c2")
	require.Equal(t, "active", conv.Status)
	require.Zero(t, conv.UnreadCount)
}

func TestFilterAndSearch(t *testing.T) {
	c := newController(&fakeLister{list: inbox()}, &fakeOpener{})
	require.NoError(t, c.Refresh(context.Background()))

	require.Len(t, c.Filter("all"), 3)
	require.Len(t, c.Filter(""), 3)
	require.Equal(t, "c2", c.Filter("active")[0].ID)

	require.Equal(t, "c2", c.Search("SHIPPING")[0].ID)
	require.Equal(t, "c3", c.Search("dana")[0].ID)
	require.Equal(t, "c1", c.Search("shop.test")[0].ID)
	require.Empty(t, c.Search("nothing like this"))

	require.Empty(t, c.Query("closed", "refund"))
	require.Len(t, c.Query("open", "refund"), 1)
}

func TestRefreshRequiresLogin(t *testing.T) {
	c := New(Config{Lister: &fakeLister{}, Opener: &fakeOpener{}, Logger: logger.Nop()})

	err := c.Refresh(context.Background())
	var lr *chatapi.LoginRequiredError
	require.ErrorAs(t, err, &lr)
	require.Equal(t, chatapi.ReasonMissingToken, lr.Reason)

	rejected := newController(&fakeLister{err: &chatapi.APIError{StatusCode: 401}}, &fakeOpener{})
	err = rejected.Refresh(context.Background())
	require.ErrorAs(t, err, &lr)
	require.Equal(t, chatapi.ReasonTokenRejected, lr.Reason)
}

func TestRunRefreshesPeriodically(t *testing.T) {
	l := &fakeLister{list: inbox()}
	changes := make(chan int, 16)
	c := New(Config{
		Lister:     l,
		Opener:     &fakeOpener{},
		Credential: credential.Credential{Token: "tok"},
		Interval:   10 * time.Millisecond,
		OnChange: func(list []dto.Conversation) {
			select {
			case changes <- len(list):
			default:
			}
		},
		Logger: logger.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return l.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 3, <-changes)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunStopsOnRejectedToken(t *testing.T) {
	c := newController(&fakeLister{err: &chatapi.APIError{StatusCode: 401}}, &fakeOpener{})

	err := c.Run(context.Background())
	require.ErrorIs(t, err, chatapi.ErrUnauthenticated)
}
