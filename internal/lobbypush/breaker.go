package lobbypush

import (
	"errors"
	"sync"
	"time"
)

var errCircuitOpen = errors.New("circuit_open")

// breaker opens a target for a cooldown after threshold consecutive
// failures. A success closes it again.
type breaker struct {
	threshold int
	cooldown  time.Duration

	mu    sync.Mutex
	state map[string]breakerState
}

type breakerState struct {
	failures  int
	openUntil time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown, state: map[string]breakerState{}}
}

func (b *breaker) allow(key string, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.state[key].openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (b *breaker) fail(key string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state[key]
	st.failures++
	if st.failures >= b.threshold {
		st = breakerState{openUntil: now.Add(b.cooldown)}
	}
	b.state[key] = st
}

func (b *breaker) succeed(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, key)
}

func (b *breaker) tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.state)
}
