package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/protocol"
	"channah-support-chat/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return 1, data, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// rejectingConn closes itself right after the first write, the way the
// gateway drops a connection whose auth frame it refuses.
type rejectingConn struct {
	*fakeConn
}

func (c *rejectingConn) WriteMessage(messageType int, data []byte) error {
	err := c.fakeConn.WriteMessage(messageType, data)
	go func() {
		time.Sleep(time.Millisecond)
		c.Close()
	}()
	return err
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	dials int
	// failFirst refuses that many dials before handing out conns.
	failFirst int
	// rejectAuth hands out fresh conns that the server side closes once the
	// auth frame is written.
	rejectAuth bool
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	if d.dials <= d.failFirst {
		return nil, errors.New("refused")
	}
	if d.rejectAuth {
		return &rejectingConn{fakeConn: newFakeConn()}, nil
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no connection available")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeFetcher struct {
	mu    sync.Mutex
	list  []dto.Message
	calls int
}

func (f *fakeFetcher) ListMessages(ctx context.Context, _ string) ([]dto.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]dto.Message(nil), f.list...), nil
}

func (f *fakeFetcher) set(list []dto.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSink struct {
	mu     sync.Mutex
	frames []protocol.Frame
	polls  [][]dto.Message
	states []State
}

func (s *recordingSink) OnFrame(f protocol.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *recordingSink) OnPoll(list []dto.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls = append(s.polls, list)
}

func (s *recordingSink) OnState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *recordingSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

func (s *recordingSink) lastPoll() []dto.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.polls) == 0 {
		return nil
	}
	return s.polls[len(s.polls)-1]
}

func testConfig() Config {
	return Config{
		ConversationID: "c1",
		Token:          "tok",
		PollInterval:   20 * time.Millisecond,
		Backoff:        NoReconnect{},
		Logger:         logger.Nop(),
	}
}

func TestHandshakeStopsPolling(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	sink := &recordingSink{}

	ch := New(testConfig(), dialer, &fakeFetcher{}, sink)
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool {
		return ch.State() == State{Push: PushConnected, Poll: PollInactive}
	}, time.Second, 5*time.Millisecond)

	require.JSONEq(t, `{"type":"auth","token":"tok"}`, conn.written()[0])
}

func TestPushFramesReachSink(t *testing.T) {
	conn := newFakeConn()
	sink := &recordingSink{}
	ch := New(testConfig(), &fakeDialer{conns: []*fakeConn{conn}}, &fakeFetcher{}, sink)
	ch.Open(context.Background())
	defer ch.Close()

	conn.in <- []byte(`{"type":"presence"}`)
	conn.in <- []byte(`garbage`)
	conn.in <- []byte(`{"type":"typing"}`)
	conn.in <- []byte(`{"type":"new_message","message":{"id":"m1","conversation_id":"c1","sender_role":"agent","content":"hi"}}`)

	require.Eventually(t, func() bool { return sink.frameCount() == 2 }, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.IsType(t, protocol.Typing{}, sink.frames[0])
	require.IsType(t, protocol.NewMessage{}, sink.frames[1])
}

func TestPollDeliversWhenPushNeverOpens(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.set([]dto.Message{{ID: "m1", ConversationID: "c1", SenderRole: "agent", Content: "hello"}})
	sink := &recordingSink{}

	ch := New(testConfig(), &fakeDialer{err: errors.New("refused")}, fetcher, sink)
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return sink.pollCount() > 0 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "m1", sink.lastPoll()[0].ID)

	require.Eventually(t, func() bool {
		return ch.State() == State{Push: PushFailed, Poll: PollActive}
	}, time.Second, 5*time.Millisecond)
}

func TestPushDropRestartsPolling(t *testing.T) {
	conn := newFakeConn()
	fetcher := &fakeFetcher{}
	sink := &recordingSink{}

	ch := New(testConfig(), &fakeDialer{conns: []*fakeConn{conn}}, fetcher, sink)
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.State().Push == PushConnected }, time.Second, 5*time.Millisecond)
	calls := fetcher.callCount()

	conn.Close()

	require.Eventually(t, func() bool {
		return ch.State() == State{Push: PushFailed, Poll: PollActive}
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return fetcher.callCount() > calls }, time.Second, 5*time.Millisecond)
}

func TestReconnectWithBackoff(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}
	cfg := testConfig()
	cfg.Backoff = ExponentialBackoff{Base: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	ch := New(cfg, dialer, &fakeFetcher{}, &recordingSink{})
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.State().Push == PushConnected }, time.Second, 5*time.Millisecond)
	first.Close()

	require.Eventually(t, func() bool {
		return dialer.dialCount() == 2 && ch.State() == State{Push: PushConnected, Poll: PollInactive}
	}, time.Second, 5*time.Millisecond)
	require.Len(t, second.written(), 1)
}

func TestPollStopAfterDeliveries(t *testing.T) {
	conn := newFakeConn()
	cfg := testConfig()
	cfg.PollStopAfter = 2

	ch := New(cfg, &fakeDialer{conns: []*fakeConn{conn}}, &fakeFetcher{}, &recordingSink{})
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.State().Push == PushConnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, PollActive, ch.State().Poll)

	conn.in <- []byte(`{"type":"new_message","message":{"id":"m1","conversation_id":"c1"}}`)
	conn.in <- []byte(`{"type":"new_message","message":{"id":"m2","conversation_id":"c1"}}`)

	require.Eventually(t, func() bool { return ch.State().Poll == PollInactive }, time.Second, 5*time.Millisecond)
}

func TestSendTyping(t *testing.T) {
	conn := newFakeConn()
	ch := New(testConfig(), &fakeDialer{conns: []*fakeConn{conn}}, &fakeFetcher{}, &recordingSink{})

	require.ErrorIs(t, ch.SendTyping(), ErrNotConnected)

	ch.Open(context.Background())
	defer ch.Close()
	require.Eventually(t, func() bool { return ch.State().Push == PushConnected }, time.Second, 5*time.Millisecond)

	require.NoError(t, ch.SendTyping())
	require.JSONEq(t, `{"type":"typing"}`, conn.written()[1])
}

func TestCloseStopsAllDelivery(t *testing.T) {
	conn := newFakeConn()
	fetcher := &fakeFetcher{}
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.PollStopAfter = 100

	ch := New(cfg, &fakeDialer{conns: []*fakeConn{conn}}, fetcher, sink)
	ch.Open(context.Background())
	require.Eventually(t, func() bool { return fetcher.callCount() > 0 }, time.Second, 5*time.Millisecond)

	ch.Close()
	require.Equal(t, State{Push: PushClosed, Poll: PollInactive}, ch.State())

	polls, frames := sink.pollCount(), sink.frameCount()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, polls, sink.pollCount())
	require.Equal(t, frames, sink.frameCount())

	ch.Close()
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Max: time.Second, MaxAttempts: 5}

	d, ok := b.Next(0)
	require.True(t, ok)
	require.Equal(t, 100*time.Millisecond, d)

	d, _ = b.Next(3)
	require.Equal(t, 800*time.Millisecond, d)

	d, _ = b.Next(4)
	require.Equal(t, time.Second, d)

	_, ok = b.Next(5)
	require.False(t, ok)

	_, ok = NoReconnect{}.Next(0)
	require.False(t, ok)
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d, ok := b.Next(0)
		require.True(t, ok)
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRejectedHandshakeBacksOff(t *testing.T) {
	dialer := &fakeDialer{rejectAuth: true}
	fetcher := &fakeFetcher{}
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	cfg.Backoff = ExponentialBackoff{Base: 10 * time.Millisecond, Max: time.Second}

	ch := New(cfg, dialer, fetcher, &recordingSink{})
	ch.Open(context.Background())

	time.Sleep(time.Second)
	ch.Close()

	// 10+20+40+80+160+320 ms fits six retries into a second
	dials := dialer.dialCount()
	require.GreaterOrEqual(t, dials, 3)
	require.LessOrEqual(t, dials, 9)
	require.LessOrEqual(t, fetcher.callCount(), dials)
}

func TestLongLivedConnectionResetsBackoff(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}, failFirst: 1}
	cfg := testConfig()
	cfg.HealthyUptime = 20 * time.Millisecond
	cfg.Backoff = ExponentialBackoff{Base: 10 * time.Millisecond, Max: time.Second, MaxAttempts: 1}

	ch := New(cfg, dialer, &fakeFetcher{}, &recordingSink{})
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.State().Push == PushConnected }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	first.Close()

	// the refused first dial used the only retry; a third dial means the
	// long-lived connection reset the counter
	require.Eventually(t, func() bool {
		return dialer.dialCount() == 3 && ch.State().Push == PushConnected
	}, time.Second, 5*time.Millisecond)
}

func TestHandshakeCatchesUpMessagesStoredDuringOutage(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}, failFirst: 1}
	fetcher := &fakeFetcher{}
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	cfg.Backoff = ExponentialBackoff{Base: 200 * time.Millisecond, Max: time.Second}

	ch := New(cfg, dialer, fetcher, sink)
	ch.Open(context.Background())
	defer ch.Close()

	time.Sleep(50 * time.Millisecond)
	fetcher.set([]dto.Message{{ID: "m1", ConversationID: "c1", SenderRole: "agent", Content: "stored while offline"}})

	require.Eventually(t, func() bool {
		list := sink.lastPoll()
		return len(list) == 1 && list[0].ID == "m1"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, State{Push: PushConnected, Poll: PollInactive}, ch.State())
	require.Equal(t, 2, dialer.dialCount())
}
