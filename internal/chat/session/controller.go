// Package session binds one selected conversation to a transport channel, a
// message store and a typing signaler, and exposes the send, typing and close
// actions of the chat surface.
//
// All binding state is mutated on a single event loop. Push frames, poll
// results, timer expiries and user actions are posted to the loop as
// operations tagged with the binding they belong to; operations for a binding
// that has since been torn down are discarded.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"channah-support-chat/internal/chat/chatapi"
	"channah-support-chat/internal/chat/credential"
	"channah-support-chat/internal/chat/store"
	"channah-support-chat/internal/chat/transport"
	"channah-support-chat/internal/chat/typing"
	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/model"
	"channah-support-chat/internal/protocol"
	"channah-support-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// API is the part of the chat API a session needs.
type API interface {
	ListMessages(ctx context.Context, conversationID string) ([]dto.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (dto.Message, error)
	CloseConversation(ctx context.Context, conversationID string) (dto.Conversation, error)
}

// APIFactory returns an API authenticated with token.
type APIFactory func(token string) API

// ClientAPI adapts a chat API client.
func ClientAPI(c *chatapi.Client) APIFactory {
	return func(token string) API { return c.WithCredential(token) }
}

type Config struct {
	API           APIFactory
	Dialer        transport.Dialer
	PollInterval  time.Duration
	TypingTTL     time.Duration
	Backoff       transport.Backoff
	PollStopAfter int
	// ReturnPath builds the location the login prompt returns to.
	ReturnPath func(conversationID string) string
	Logger     *logger.Logger
}

type connectOptions struct {
	status model.ConversationStatus
}

type ConnectOption func(*connectOptions)

// WithStatus seeds the lifecycle with the status the conversation list knows.
func WithStatus(status model.ConversationStatus) ConnectOption {
	return func(o *connectOptions) {
		if status.Valid() {
			o.status = status
		}
	}
}

type op struct {
	b  *binding
	fn func()
}

type Controller struct {
	cfg      Config
	listener Listener
	log      *logger.Logger

	root       context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	queue   []op
	current *binding
	stopped bool

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, listener Listener) *Controller {
	if listener == nil {
		listener = Funcs{}
	}
	if cfg.ReturnPath == nil {
		cfg.ReturnPath = func(id string) string { return "/chat/" + id }
	}
	root, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cfg:        cfg,
		listener:   listener,
		log:        logger.OrGlobal(cfg.Logger).Named("session"),
		root:       root,
		rootCancel: cancel,
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case <-c.wake:
			c.drain()
		}
	}
}

func (c *Controller) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue[0] = op{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if next.b != nil && !next.b.active() {
			continue
		}
		next.fn()
	}
}

// post enqueues fn for the loop without blocking.
func (c *Controller) post(b *binding, fn func()) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, op{b: b, fn: fn})
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// call runs fn on the loop and waits for it. It returns false if fn was
// discarded because b was torn down or the controller stopped.
func (c *Controller) call(b *binding, fn func()) bool {
	finished := make(chan struct{})
	if !c.post(b, func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	var gone <-chan struct{}
	if b != nil {
		gone = b.ctx.Done()
	}
	select {
	case <-finished:
		return true
	case <-gone:
		return false
	case <-c.done:
		return false
	}
}

func (c *Controller) currentBinding() *binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Handle returns the current conversation, or nil.
func (c *Controller) Handle() *Handle {
	b := c.currentBinding()
	if b == nil {
		return nil
	}
	return &Handle{b: b}
}

// Connect selects conversationID. Any previous conversation is fully torn down
// first, so none of its events can reach the new one.
func (c *Controller) Connect(ctx context.Context, conversationID string, cred credential.Credential, opts ...ConnectOption) (*Handle, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrNoConversation
	}
	if !cred.Valid() {
		return nil, &chatapi.LoginRequiredError{
			ReturnPath: c.cfg.ReturnPath(conversationID),
			Reason:     chatapi.ReasonMissingToken,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := connectOptions{status: model.ConversationStatusOpen}
	for _, opt := range opts {
		opt(&o)
	}
	role := model.SenderRole(cred.Role)
	if !role.Valid() {
		role = model.RoleCustomer
	}

	var h *Handle
	ok := c.call(nil, func() {
		c.teardownCurrent()
		b := c.newBinding(conversationID, role, cred.Token, o.status)

		c.mu.Lock()
		c.current = b
		c.mu.Unlock()

		b.channel.Open(b.ctx)
		c.loadInitial(b)
		h = &Handle{b: b}
	})
	if !ok {
		return nil, ErrShutdown
	}
	c.log.Info("conversation connected", zap.String("conversation_id", conversationID), zap.String("role", string(role)))
	return h, nil
}

func (c *Controller) newBinding(id string, role model.SenderRole, token string, status model.ConversationStatus) *binding {
	ctx, cancel := context.WithCancel(c.root)
	b := &binding{
		id:      id,
		role:    role,
		token:   token,
		log:     c.log.With(zap.String("conversation_id", id)),
		ctx:     ctx,
		cancel:  cancel,
		api:     c.cfg.API(token),
		store:   store.New(id),
		status:  status,
		claimed: make(map[string]bool),
	}
	b.typing = typing.New(c.cfg.TypingTTL, func(bool) {
		c.post(b, func() { c.typingChanged(b) })
	})
	b.channel = transport.New(transport.Config{
		ConversationID: id,
		Token:          token,
		PollInterval:   c.cfg.PollInterval,
		Backoff:        c.cfg.Backoff,
		PollStopAfter:  c.cfg.PollStopAfter,
		Logger:         c.cfg.Logger,
	}, c.cfg.Dialer, b.api, &sink{c: c, b: b})
	return b
}

// loadInitial pulls the full message list once after connecting.
func (c *Controller) loadInitial(b *binding) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		list, err := b.api.ListMessages(b.ctx, b.id)
		if err != nil {
			if b.active() {
				b.log.Warn("initial message load failed", zap.Error(err))
			}
			return
		}
		c.post(b, func() { c.applyList(b, list) })
	}()
}

func (c *Controller) teardownCurrent() {
	c.mu.Lock()
	b := c.current
	c.current = nil
	c.mu.Unlock()
	if b == nil {
		return
	}

	b.cancel()
	b.channel.Close()
	b.typing.Stop()
	b.wg.Wait()
	b.log.Debug("conversation torn down")
}

// Teardown releases the current conversation's push handle, poll timer and
// typing timer.
func (c *Controller) Teardown() {
	c.call(nil, c.teardownCurrent)
}

// Shutdown tears down and stops the event loop. The controller is unusable
// afterwards.
func (c *Controller) Shutdown() {
	c.stopOnce.Do(func() {
		c.call(nil, c.teardownCurrent)

		c.mu.Lock()
		c.stopped = true
		c.queue = nil
		c.mu.Unlock()

		close(c.quit)
		<-c.done
		c.rootCancel()
	})
}

// Send posts content to the current conversation. Until the server answers,
// the message is shown as a pending entry. On failure the pending entry is
// removed and a *SendError returns the content to the caller. A 409 answer
// also marks the conversation closed.
func (c *Controller) Send(ctx context.Context, content string) (dto.Message, error) {
	b := c.currentBinding()
	if b == nil {
		return dto.Message{}, ErrNoConversation
	}
	if strings.TrimSpace(content) == "" {
		return dto.Message{}, ErrEmptyContent
	}
	if (&Handle{b: b}).Closed() {
		return dto.Message{}, ErrConversationClosed
	}

	p := Pending{LocalID: uuid.NewString(), Content: content, SentAt: time.Now()}
	if !c.call(b, func() { b.addPending(p) }) {
		return dto.Message{}, ErrNoConversation
	}

	msg, err := b.api.SendMessage(ctx, b.id, content)
	if err != nil {
		c.call(b, func() {
			b.dropPending(p.LocalID)
			// the server refuses posts to a closed conversation with 409
			if chatapi.IsStatus(err, http.StatusConflict) {
				c.markClosed(b)
			}
		})
		return dto.Message{}, &SendError{Content: content, Err: err}
	}

	c.call(b, func() { c.applyOwn(b, msg, p.LocalID) })
	return msg, nil
}

// Typing tells the peer the local user is typing. It is dropped when the
// push channel is not connected.
func (c *Controller) Typing() {
	b := c.currentBinding()
	if b == nil || (&Handle{b: b}).Closed() {
		return
	}
	if err := b.channel.SendTyping(); err != nil {
		b.log.Debug("typing frame dropped", zap.Error(err))
	}
}

// CloseConversation closes the current conversation on the server. A
// conversation the server already considers closed is treated as closed.
func (c *Controller) CloseConversation(ctx context.Context) error {
	b := c.currentBinding()
	if b == nil {
		return ErrNoConversation
	}
	if _, err := b.api.CloseConversation(ctx, b.id); err != nil && !chatapi.IsStatus(err, http.StatusConflict) {
		return errors.Wrap(err, "close conversation")
	}
	c.call(b, func() { c.markClosed(b) })
	return nil
}

func (c *Controller) applyOwn(b *binding, m dto.Message, localID string) {
	b.mu.Lock()
	inserted := b.store.Insert(m)
	if b.store.Contains(m.ID) {
		b.reconcileLocked(m, localID)
	} else {
		// the store refused the response; nothing will ever retire the entry
		b.removePendingLocked(localID)
	}
	if inserted {
		b.noteLocked(m)
	}
	b.mu.Unlock()

	if inserted {
		c.arrived(b, []dto.Message{m})
	}
}

func (c *Controller) applyPushed(b *binding, m dto.Message) {
	b.mu.Lock()
	inserted := b.store.Insert(m)
	if inserted {
		b.reconcileLocked(m, "")
		b.noteLocked(m)
	}
	b.mu.Unlock()

	if !inserted && m.ConversationID != "" && m.ConversationID != b.id {
		b.log.Warn("dropping message for another conversation", zap.String("message_conversation_id", m.ConversationID))
		return
	}
	if inserted {
		c.arrived(b, []dto.Message{m})
	}
}

func (c *Controller) applyList(b *binding, list []dto.Message) {
	b.mu.Lock()
	var fresh []dto.Message
	for _, m := range list {
		if !b.store.Contains(m.ID) {
			fresh = append(fresh, m)
		}
	}
	if !b.store.MergeList(list) {
		fresh = nil
	}
	for _, m := range fresh {
		b.reconcileLocked(m, "")
		b.noteLocked(m)
	}
	b.mu.Unlock()

	c.arrived(b, fresh)
}

func (c *Controller) arrived(b *binding, msgs []dto.Message) {
	for _, m := range msgs {
		if model.SenderRole(m.SenderRole) != b.role {
			b.typing.MessageArrived()
			break
		}
	}
	for _, m := range msgs {
		c.listener.OnMessage(m)
	}
}

func (c *Controller) markClosed(b *binding) {
	b.mu.Lock()
	changed := b.advanceLocked(model.ConversationStatusClosed)
	b.mu.Unlock()

	if changed {
		b.log.Info("conversation closed")
		c.listener.OnClosed(b.id)
	}
}

func (c *Controller) typingChanged(b *binding) {
	v := b.typing.Typing()
	if v == b.lastTyping {
		return
	}
	b.lastTyping = v
	c.listener.OnTyping(v)
}

// noteLocked applies the lifecycle effect of a new message: the first agent
// reply activates an open conversation.
func (b *binding) noteLocked(m dto.Message) {
	if model.SenderRole(m.SenderRole) == model.RoleAgent {
		b.advanceLocked(model.ConversationStatusActive)
	}
}

type sink struct {
	c *Controller
	b *binding
}

func (s *sink) OnFrame(f protocol.Frame) {
	s.c.post(s.b, func() {
		if err := protocol.Dispatch(f, frameHandler{c: s.c, b: s.b}); err != nil {
			s.b.log.Warn("unhandled frame", zap.Error(err))
		}
	})
}

func (s *sink) OnPoll(list []dto.Message) {
	s.c.post(s.b, func() { s.c.applyList(s.b, list) })
}

func (s *sink) OnState(st transport.State) {
	s.c.post(s.b, func() {
		s.b.log.Debug("transport state", zap.String("push", string(st.Push)), zap.String("poll", string(st.Poll)))
	})
}

type frameHandler struct {
	c *Controller
	b *binding
}

func (h frameHandler) OnNewMessage(m dto.Message) { h.c.applyPushed(h.b, m) }
func (h frameHandler) OnTyping()                  { h.b.typing.Signal() }
func (h frameHandler) OnChatClosed()              { h.c.markClosed(h.b) }
