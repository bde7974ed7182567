// Package typing tracks the remote participant's "is typing" indicator.
package typing

import (
	"sync"
	"time"
)

// DefaultTTL is how long an indicator stays up without a fresh signal.
const DefaultTTL = 3 * time.Second

// Signaler is a boolean with a self-expiring timer. Each Signal re-arms the
// timer; a real message from the peer clears the flag immediately.
type Signaler struct {
	ttl      time.Duration
	onChange func(bool)

	mu      sync.Mutex
	typing  bool
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New returns a Signaler. onChange, if not nil, is called on every flip of the
// flag, never while the Signaler's lock is held.
func New(ttl time.Duration, onChange func(bool)) *Signaler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signaler{ttl: ttl, onChange: onChange}
}

// Signal raises the indicator and restarts the expiry timer.
func (s *Signaler) Signal() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	changed := !s.typing
	s.typing = true
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(gen) })
	s.mu.Unlock()

	if changed {
		s.notify(true)
	}
}

// MessageArrived clears the indicator; the peer finished typing.
func (s *Signaler) MessageArrived() {
	s.clear()
}

func (s *Signaler) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Stop cancels the timer and silences further notifications.
func (s *Signaler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.typing = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Signaler) expire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || !s.typing || s.stopped {
		s.mu.Unlock()
		return
	}
	s.typing = false
	s.timer = nil
	s.mu.Unlock()

	s.notify(false)
}

func (s *Signaler) clear() {
	s.mu.Lock()
	if !s.typing || s.stopped {
		s.mu.Unlock()
		return
	}
	s.typing = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.notify(false)
}

func (s *Signaler) notify(v bool) {
	if s.onChange != nil {
		s.onChange(v)
	}
}
