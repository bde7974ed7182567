package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type changes struct {
	mu  sync.Mutex
	got []bool
}

func (c *changes) record(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, v)
}

func (c *changes) snapshot() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.got...)
}

func TestSignalExpires(t *testing.T) {
	c := &changes{}
	s := New(40*time.Millisecond, c.record)
	defer s.Stop()

	s.Signal()
	require.True(t, s.Typing())

	require.Eventually(t, func() bool { return !s.Typing() }, time.Second, 5*time.Millisecond)
	require.Equal(t, []bool{true, false}, c.snapshot())
}

func TestSignalRearmsTimer(t *testing.T) {
	s := New(80*time.Millisecond, nil)
	defer s.Stop()

	s.Signal()
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		s.Signal()
	}
	require.True(t, s.Typing())

	require.Eventually(t, func() bool { return !s.Typing() }, time.Second, 5*time.Millisecond)
}

func TestRepeatedSignalsNotifyOnce(t *testing.T) {
	c := &changes{}
	s := New(time.Second, c.record)
	defer s.Stop()

	s.Signal()
	s.Signal()
	s.Signal()

	require.Equal(t, []bool{true}, c.snapshot())
}

func TestMessageArrivedClearsImmediately(t *testing.T) {
	c := &changes{}
	s := New(time.Minute, c.record)
	defer s.Stop()

	s.Signal()
	s.MessageArrived()
	require.False(t, s.Typing())

	s.MessageArrived()
	require.Equal(t, []bool{true, false}, c.snapshot())
}

func TestStopSilencesTimer(t *testing.T) {
	c := &changes{}
	s := New(20*time.Millisecond, c.record)

	s.Signal()
	s.Stop()
	s.Signal()

	time.Sleep(60 * time.Millisecond)
	require.False(t, s.Typing())
	require.Equal(t, []bool{true}, c.snapshot())
}

func TestDefaultTTL(t *testing.T) {
	s := New(0, nil)
	require.Equal(t, DefaultTTL, s.ttl)
}
