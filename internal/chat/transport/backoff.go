package transport

import (
	"math/rand/v2"
	"time"
)

// Backoff decides whether and when the push channel is redialled after a
// failure. attempt counts consecutive failures starting at 0.
type Backoff interface {
	Next(attempt int) (time.Duration, bool)
}

// NoReconnect gives up after the first failure; delivery continues over poll
// for the rest of the session.
type NoReconnect struct{}

func (NoReconnect) Next(int) (time.Duration, bool) { return 0, false }

// ExponentialBackoff doubles the delay from Base up to Max. Jitter is the
// fraction of the delay randomly added or removed. MaxAttempts of 0 retries
// forever.
type ExponentialBackoff struct {
	Base        time.Duration
	Max         time.Duration
	Jitter      float64
	MaxAttempts int
}

func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		Base:   500 * time.Millisecond,
		Max:    30 * time.Second,
		Jitter: 0.2,
	}
}

func (b ExponentialBackoff) Next(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return 0, false
	}
	base := b.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if b.Jitter > 0 {
		spread := float64(delay) * b.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if delay < 0 {
		delay = 0
	}
	return delay, true
}
