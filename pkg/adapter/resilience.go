package adapter

import (
	"context"
	"sync"
	"time"
)

// CircuitState is one of the three states a CircuitBreaker can be in.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig tunes trip/recovery behaviour.
type CircuitBreakerConfig struct {
	// ConsecutiveFailureThreshold trips the breaker open after this many
	// consecutive dispatch/process failures.
	ConsecutiveFailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before moving to
	// half-open, where calls are allowed again until the next recorded
	// success closes it or failure re-opens it.
	RecoveryTimeout time.Duration
}

func defaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 5,
		RecoveryTimeout:             30 * time.Second,
	}
}

// CircuitBreaker guards an adapter call path (respond/dispatch) against
// a failing downstream adapter, tripping open after repeated failures
// and probing for recovery via a half-open state, adapted from a
// code-loop circuit breaker to the simpler consecutive-failure case an
// adapter dispatch sees.
type CircuitBreaker struct {
	mu     sync.Mutex
	cfg    CircuitBreakerConfig
	state  CircuitState
	fails  int
	openAt time.Time
}

// NewCircuitBreaker constructs a CircuitBreaker, falling back to
// defaultCircuitBreakerConfig for any zero-valued fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := defaultCircuitBreakerConfig()
	if cfg.ConsecutiveFailureThreshold <= 0 {
		cfg.ConsecutiveFailureThreshold = def.ConsecutiveFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	return &CircuitBreaker{cfg: cfg}
}

// State returns the current state, transitioning Open to HalfOpen if the
// recovery timeout has elapsed.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *CircuitBreaker) stateLocked() CircuitState {
	if b.state == CircuitOpen && time.Since(b.openAt) >= b.cfg.RecoveryTimeout {
		b.state = CircuitHalfOpen
	}
	return b.state
}

// Allow reports whether a call should be attempted right now.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked() != CircuitOpen
}

// RecordSuccess resets the failure counter and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = 0
	b.state = CircuitClosed
}

// RecordFailure counts a failure; in HalfOpen any failure immediately
// re-opens the breaker, in Closed it trips open once the consecutive
// threshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.tripOpenLocked()
		return
	}

	b.fails++
	if b.fails >= b.cfg.ConsecutiveFailureThreshold {
		b.tripOpenLocked()
	}
}

func (b *CircuitBreaker) tripOpenLocked() {
	b.state = CircuitOpen
	b.openAt = time.Now()
}

// Reset clears the breaker back to Closed with no recorded failures.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.fails = 0
}

// CircuitBreakerStats is a snapshot of breaker state for introspection/status reporting.
type CircuitBreakerStats struct {
	State             CircuitState
	ConsecutiveFails  int
	OpenedAt          time.Time
}

// Stats returns a point-in-time snapshot.
func (b *CircuitBreaker) Stats() CircuitBreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CircuitBreakerStats{State: b.stateLocked(), ConsecutiveFails: b.fails, OpenedAt: b.openAt}
}

// RateLimiter is a token-bucket limiter bounding outbound adapter calls
// (dispatch, NLU process) per hour, with a small allowed burst.
type RateLimiter struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter builds a limiter allowing perHour calls per hour, with
// burst capacity of perHour/10 (minimum 1) to smooth bursty traffic
// without admitting a thundering herd.
func NewRateLimiter(perHour int) *RateLimiter {
	if perHour <= 0 {
		perHour = 3600
	}
	capacity := float64(perHour) / 10
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		capacity:   capacity,
		refillRate: float64(perHour) / 3600,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

func (r *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
}

// Allow consumes one token if available, reporting whether the call may
// proceed immediately.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refillLocked()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is cancelled, for a
// caller that would rather queue briefly than drop a call outright.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refillLocked()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		deficit := 1 - r.tokens
		wait := time.Duration(deficit / r.refillRate * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Tokens returns the current token count, mostly for tests/introspection.
func (r *RateLimiter) Tokens() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refillLocked()
	return r.tokens
}
