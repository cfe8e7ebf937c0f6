package http

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState is the state of one host's circuit.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
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
	}
	return "unknown"
}

const (
	DefaultFailureThreshold    = 5
	DefaultRecoveryTimeout     = 30 * time.Second
	DefaultHalfOpenMaxRequests = 1
)

// ErrCircuitOpen is returned without contacting a host whose circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxRequests int
	// IsTransientError filters which failures count. Nil counts all of them.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns the defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

type circuit struct {
	state            CircuitState
	failures         int
	changedAt        time.Time
	halfOpenRequests int
}

// CircuitBreaker fails fast for a host after repeated transient failures, so a
// batch of IDs does not hammer a site that is down or in maintenance.
type CircuitBreaker struct {
	circuits map[string]*circuit
	mu       sync.Mutex
	config   CircuitBreakerConfig
}

// NewCircuitBreaker creates a breaker, filling zero fields with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}
	return &CircuitBreaker{
		circuits: make(map[string]*circuit),
		config:   cfg,
	}
}

// Allow returns ErrCircuitOpen when domain must not be contacted yet.
func (cb *CircuitBreaker) Allow(domain string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	switch c.state {
	case CircuitOpen:
		if time.Since(c.changedAt) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		c.state = CircuitHalfOpen
		c.changedAt = time.Now()
		c.halfOpenRequests = 1
	case CircuitHalfOpen:
		if c.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		c.halfOpenRequests++
	}
	return nil
}

// RecordSuccess closes a half-open circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(domain string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	if c.state == CircuitHalfOpen {
		c.state = CircuitClosed
		c.changedAt = time.Now()
		c.halfOpenRequests = 0
	}
	c.failures = 0
}

// RecordFailure counts a transient failure against domain.
func (cb *CircuitBreaker) RecordFailure(domain string, err error) {
	if cb == nil {
		return
	}
	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	c.failures++
	switch c.state {
	case CircuitClosed:
		if c.failures >= cb.config.FailureThreshold {
			c.state = CircuitOpen
			c.changedAt = time.Now()
		}
	case CircuitHalfOpen:
		c.state = CircuitOpen
		c.changedAt = time.Now()
	}
}

// State reports domain's current state.
func (cb *CircuitBreaker) State(domain string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[domain]
	if !ok {
		return CircuitClosed
	}
	if c.state == CircuitOpen && time.Since(c.changedAt) >= cb.config.RecoveryTimeout {
		return CircuitHalfOpen
	}
	return c.state
}

// Reset forgets domain's history.
func (cb *CircuitBreaker) Reset(domain string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.circuits, domain)
}

// get must be called with mu held.
func (cb *CircuitBreaker) get(domain string) *circuit {
	c, ok := cb.circuits[domain]
	if !ok {
		c = &circuit{state: CircuitClosed, changedAt: time.Now()}
		cb.circuits[domain] = c
	}
	return c
}

// IsTransientHTTPError counts throttling, 5xx and network failures. Other 4xx
// responses, such as a missing thumbnail, say nothing about host health.
func IsTransientHTTPError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}
	return true
}
