// Package transport delivers conversation updates over a websocket push
// channel with an HTTP poll loop as the safety net.
package transport

import (
	"context"
	"sync"
	"time"

	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/protocol"
	"channah-support-chat/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type PushState string

const (
	PushConnecting PushState = "connecting"
	PushConnected  PushState = "connected"
	PushFailed     PushState = "failed"
	PushClosed     PushState = "closed"
)

type PollState string

const (
	PollActive   PollState = "active"
	PollInactive PollState = "inactive"
)

type State struct {
	Push PushState
	Poll PollState
}

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultHealthyUptime = 10 * time.Second
)

var ErrNotConnected = errors.New("transport: push channel not connected")

type Fetcher interface {
	ListMessages(ctx context.Context, conversationID string) ([]dto.Message, error)
}

// Sink receives everything the channel delivers. Calls come from the
// channel's goroutines and stop once Close returns.
type Sink interface {
	OnFrame(protocol.Frame)
	OnPoll([]dto.Message)
	OnState(State)
}

type Config struct {
	ConversationID string
	Token          string
	PollInterval   time.Duration
	Backoff        Backoff
	// PollStopAfter keeps polling after the handshake until that many pushed
	// messages have arrived. 0 stops polling as soon as the handshake succeeds.
	PollStopAfter int
	// HealthyUptime is how long a connection that delivered no frame must
	// stay up before a drop resets the reconnect backoff.
	HealthyUptime time.Duration
	Logger        *logger.Logger
}

// Channel owns one push connection and one poll loop for a conversation.
type Channel struct {
	cfg     Config
	dialer  Dialer
	fetcher Fetcher
	sink    Sink
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	conn       Conn
	pollCancel context.CancelFunc
	delivered  int
	opened     bool
	closed     bool

	writeMu sync.Mutex
}

func New(cfg Config, dialer Dialer, fetcher Fetcher, sink Sink) *Channel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.HealthyUptime <= 0 {
		cfg.HealthyUptime = DefaultHealthyUptime
	}
	log := logger.OrGlobal(cfg.Logger).Named("transport").With(zap.String("conversation_id", cfg.ConversationID))

	return &Channel{
		cfg:     cfg,
		dialer:  dialer,
		fetcher: fetcher,
		sink:    sink,
		log:     log,
		state:   State{Push: PushClosed, Poll: PollInactive},
	}
}

// Open starts the push channel and the poll loop side by side. The poll loop
// runs regardless of push status until the handshake completes.
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	if c.opened || c.closed {
		c.mu.Unlock()
		return
	}
	c.opened = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.startPollLocked(false)
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.runPush()
	}()
}

// SendTyping emits a typing frame. It fails with ErrNotConnected while push
// is down; typing is ephemeral and never queued.
func (c *Channel) SendTyping() error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state.Push == PushConnected
	c.mu.Unlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}
	return c.write(conn, protocol.MustEncode(protocol.Typing{}))
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops push and poll and waits for the channel's goroutines to exit.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.pollCancel = nil
	c.state = State{Push: PushClosed, Poll: PollInactive}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
}

func (c *Channel) runPush() {
	attempt := 0
	for {
		c.setPush(PushConnecting)

		healthy, err := c.connectAndRead()
		if c.ctx.Err() != nil {
			return
		}
		// A server that rejects the auth frame closes right after reading
		// it, so a completed handshake alone does not reset the backoff.
		if healthy {
			attempt = 0
		}

		c.log.Info("push channel down, polling", zap.Error(err), zap.Int("attempt", attempt))
		c.setPush(PushFailed)
		// A short-lived connection already fetched once at its handshake.
		c.startPoll(healthy)

		delay, ok := c.cfg.Backoff.Next(attempt)
		if !ok {
			return
		}
		attempt++

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectAndRead runs one connection until it drops. It reports healthy when
// the connection delivered a frame or outlived HealthyUptime, and returns the
// dial, handshake or read error that ended it.
func (c *Channel) connectAndRead() (bool, error) {
	conn, err := c.dialer.Dial(c.ctx, c.cfg.ConversationID)
	if err != nil {
		incDial("error")
		return false, err
	}

	if err := c.write(conn, protocol.MustEncode(protocol.Auth{Token: c.cfg.Token})); err != nil {
		incDial("handshake_error")
		conn.Close()
		return false, errors.Wrap(err, "send auth frame")
	}
	incDial("ok")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return false, context.Canceled
	}
	c.conn = conn
	c.delivered = 0
	c.state.Push = PushConnected
	if c.cfg.PollStopAfter == 0 {
		c.stopPollLocked()
	}
	c.catchUpLocked()
	state := c.state
	c.mu.Unlock()
	c.emit(state)

	c.log.Debug("push channel connected")
	connectedAt := time.Now()
	frames, readErr := c.read(conn)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()

	healthy := frames > 0 || time.Since(connectedAt) >= c.cfg.HealthyUptime
	c.log.Debug("push channel read ended", zap.Bool("healthy", healthy), zap.Int("frames", frames), zap.Error(readErr))
	return healthy, errors.Wrap(readErr, "push read")
}

// catchUpLocked fetches the list once after a handshake. The server only
// pushes to joined subscribers, so anything stored while push was down
// arrives through this fetch.
func (c *Channel) catchUpLocked() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(c.ctx)
	}()
}

// read delivers frames until the connection fails and reports how many frames
// reached the sink.
func (c *Channel) read(conn Conn) (int, error) {
	frames := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return frames, err
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("dropping push frame", zap.Error(err))
			incDropped("decode")
			continue
		}
		if _, isAuth := frame.(protocol.Auth); isAuth {
			incDropped("unexpected")
			continue
		}
		if c.ctx.Err() != nil {
			return frames, c.ctx.Err()
		}

		c.sink.OnFrame(frame)
		frames++

		if _, isMessage := frame.(protocol.NewMessage); isMessage {
			c.countDelivery()
		}
	}
}

func (c *Channel) countDelivery() {
	if c.cfg.PollStopAfter <= 0 {
		return
	}
	c.mu.Lock()
	c.delivered++
	stopped := false
	if c.delivered >= c.cfg.PollStopAfter && c.pollCancel != nil {
		c.stopPollLocked()
		stopped = true
	}
	state := c.state
	c.mu.Unlock()

	if stopped {
		c.emit(state)
	}
}

func (c *Channel) write(conn Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) startPoll(immediate bool) {
	c.mu.Lock()
	started := c.startPollLocked(immediate)
	state := c.state
	c.mu.Unlock()

	if started {
		c.emit(state)
	}
}

func (c *Channel) startPollLocked(immediate bool) bool {
	if c.closed || c.pollCancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.pollCancel = cancel
	c.state.Poll = PollActive
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pollLoop(ctx, immediate)
	}()
	return true
}

func (c *Channel) stopPollLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.state.Poll = PollInactive
}

func (c *Channel) pollLoop(ctx context.Context, immediate bool) {
	if immediate {
		c.poll(ctx)
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Channel) poll(ctx context.Context) {
	list, err := c.fetcher.ListMessages(ctx, c.cfg.ConversationID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		incPoll("error")
		c.log.Debug("poll failed", zap.Error(err))
		return
	}
	incPoll("ok")
	c.sink.OnPoll(list)
}

func (c *Channel) setPush(p PushState) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Push = p
	state := c.state
	c.mu.Unlock()
	c.emit(state)
}

func (c *Channel) emit(s State) {
	if c.ctx.Err() != nil {
		return
	}
	c.sink.OnState(s)
}
