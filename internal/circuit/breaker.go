// Package circuit stops calling an upstream that keeps failing until a
// cooldown has passed.
package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit open")

// Breaker opens after threshold consecutive failures and rejects calls until
// cooldown has elapsed. A success closes it again.
type Breaker struct {
	mu             sync.RWMutex
	threshold      int
	cooldownPeriod time.Duration
	failureCount   int
	cooldownUntil  time.Time
	now            func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		threshold:      threshold,
		cooldownPeriod: cooldown,
		now:            time.Now,
	}
}

// Allow returns an error wrapping ErrOpen while the breaker is cooling down.
func (cb *Breaker) Allow() error {
	if remaining := cb.CooldownRemaining(); remaining > 0 {
		return fmt.Errorf("%w: retry in %s", ErrOpen, remaining.Round(time.Millisecond))
	}
	return nil
}

// RecordFailure reports whether this failure opened the breaker.
func (cb *Breaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.failureCount >= cb.threshold {
		cb.cooldownUntil = cb.now().Add(cb.cooldownPeriod)
		cb.failureCount = 0
		return true
	}
	return false
}

func (cb *Breaker) RecordSuccess() {
	cb.Reset()
}

// CooldownRemaining is zero when the breaker is closed.
func (cb *Breaker) CooldownRemaining() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if now := cb.now(); now.Before(cb.cooldownUntil) {
		return cb.cooldownUntil.Sub(now)
	}
	return 0
}

func (cb *Breaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.cooldownUntil = time.Time{}
}

func (cb *Breaker) FailureCount() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return cb.failureCount
}
