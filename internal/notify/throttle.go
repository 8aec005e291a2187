package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle lets at most one event per key through in each window.
type Throttle struct {
	clock  clockwork.Clock
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewThrottle(clock clockwork.Clock, window time.Duration) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{clock: clock, window: window, last: make(map[string]time.Time)}
}

// Allow reports whether an event for key may go through now, and if so records it.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now
	return true
}

// Forget drops the record of key, so that its next event goes through.
func (t *Throttle) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key)
}
