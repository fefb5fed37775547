package ai

import (
	"errors"
	"sync"
	"time"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the position of a Breaker
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// Breaker rejects calls to the model after repeated transient failures and
// lets probe calls through once cooldown has passed. Closing again takes
// probes consecutive successes; one failed probe reopens it.
type Breaker struct {
	mu sync.Mutex

	state    BreakerState
	failures int
	passed   int
	openedAt time.Time

	threshold int
	probes    int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker creates a closed breaker
func NewBreaker(threshold, probes int, cooldown time.Duration) *Breaker {
	b := &Breaker{
		state:     BreakerClosed,
		threshold: threshold,
		probes:    probes,
		cooldown:  cooldown,
		now:       time.Now,
	}
	metrics.RewriterCircuitOpen.Set(0)
	return b
}

// Allow reports whether a call may proceed
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.moveTo(BreakerHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

// Success records a call that reached the model and got an answer
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.passed++
		if b.passed >= b.probes {
			b.moveTo(BreakerClosed)
		}
		return
	}
	b.failures = 0
}

// Failure records a transient failure
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch {
	case b.state == BreakerHalfOpen:
		b.moveTo(BreakerOpen)
	case b.state == BreakerClosed && b.failures >= b.threshold:
		b.moveTo(BreakerOpen)
	}
}

// State returns the breaker position and the consecutive failure count
func (b *Breaker) State() (BreakerState, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.failures
}

// moveTo requires b.mu
func (b *Breaker) moveTo(next BreakerState) {
	logging.Warnf("[AI] circuit %s -> %s after %d failures", b.state, next, b.failures)
	b.state = next
	b.passed = 0
	switch next {
	case BreakerOpen:
		b.openedAt = b.now()
		metrics.RewriterCircuitOpen.Set(1)
	case BreakerClosed:
		b.failures = 0
		metrics.RewriterCircuitOpen.Set(0)
	default:
		metrics.RewriterCircuitOpen.Set(0.5)
	}
}
