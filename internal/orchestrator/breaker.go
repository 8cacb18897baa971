package orchestrator

import (
	"sync"
	"time"
)

// circuitBreaker is the global pause flag for all symbol loops. While engaged,
// loops poll-sleep instead of processing input; the flag clears automatically
// once the cooldown elapses, or earlier on a manual reset.
type circuitBreaker struct {
	mu        sync.Mutex
	engaged   bool
	reason    string
	trippedAt time.Time
	cooldown  time.Duration
	onClear   func(manual bool)
}

func newCircuitBreaker(cooldown time.Duration, onClear func(manual bool)) *circuitBreaker {
	return &circuitBreaker{cooldown: cooldown, onClear: onClear}
}

// trip engages the breaker. Re-tripping while engaged extends the cooldown.
func (cb *circuitBreaker) trip(reason string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	first := !cb.engaged
	cb.engaged = true
	cb.reason = reason
	cb.trippedAt = time.Now()
	return first
}

// active reports whether loops should pause, clearing on cooldown expiry.
func (cb *circuitBreaker) active() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.engaged {
		return false
	}
	if time.Since(cb.trippedAt) >= cb.cooldown {
		cb.engaged = false
		cb.reason = ""
		if cb.onClear != nil {
			go cb.onClear(false)
		}
		return false
	}
	return true
}

// reset clears the breaker manually.
func (cb *circuitBreaker) reset() {
	cb.mu.Lock()
	wasEngaged := cb.engaged
	cb.engaged = false
	cb.reason = ""
	cb.mu.Unlock()

	if wasEngaged && cb.onClear != nil {
		go cb.onClear(true)
	}
}

// state returns the engaged flag and trip reason.
func (cb *circuitBreaker) state() (bool, string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.engaged, cb.reason
}
