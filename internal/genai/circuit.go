package genai

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("model backend circuit is open")

// Breaker defaults, applied for zero config values.
const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultCooldown         = 30 * time.Second
)

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed passes calls through normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes the breaker. Zero values take the defaults.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // probe successes that close it again
	Cooldown         time.Duration // open time before probes are let through

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// CircuitBreaker guards the model backend: after enough consecutive failures
// it rejects calls outright until a cooldown passes, so a dead backend fails
// fast instead of burning retries on every user turn. Once the cooldown
// elapses probe calls are let through; enough probe successes close the
// circuit, one probe failure restarts the cooldown.
type CircuitBreaker struct {
	mu sync.Mutex

	state          CircuitState
	failureStreak  int
	probeSuccesses int
	openedAt       time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &CircuitBreaker{
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Cooldown,
		now:              cfg.Clock,
	}
}

// Allow reports whether a call may proceed. An open circuit whose cooldown
// has elapsed moves to half-open and admits the call as a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) <= cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.probeSuccesses = 0
	}
	return nil
}

// Success records a completed backend call.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureStreak = 0
	case CircuitHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failureStreak = 0
			cb.probeSuccesses = 0
		}
	}
}

// Failure records a failed backend call.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureStreak++
		if cb.failureStreak >= cb.failureThreshold {
			cb.open()
		}
	case CircuitHalfOpen:
		// Failed probe: back to open, cooldown restarts.
		cb.open()
	}
}

// open transitions to the open state. Caller holds cb.mu.
func (cb *CircuitBreaker) open() {
	cb.state = CircuitOpen
	cb.openedAt = cb.now()
	cb.probeSuccesses = 0
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureStreak = 0
	cb.probeSuccesses = 0
	cb.openedAt = time.Time{}
}
