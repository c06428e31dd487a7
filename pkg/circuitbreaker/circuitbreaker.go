// Package circuitbreaker stops the engine from waiting on an unreachable
// snapshot cache on every recompute.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker is cooling down.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned while the single half-open probe is in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings configures a CircuitBreaker.
type Settings struct {
	Name string

	// Failures is the number of consecutive failures that opens the circuit (default 5).
	Failures int

	// Cooldown is how long the circuit stays open before one probe is let through (default 30s).
	Cooldown time.Duration

	// IsFailure decides which errors count. Nil counts every non-nil error.
	IsFailure func(error) bool

	OnStateChange func(name string, from, to State)

	// Now is the time source (time.Now when nil).
	Now func() time.Time
}

// CircuitBreaker lets calls through while closed, rejects them while open and
// admits one probe at a time while half-open. A successful probe closes the
// circuit and a failed one reopens it.
type CircuitBreaker struct {
	settings Settings

	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
	probing   bool
}

// New creates a closed CircuitBreaker.
func New(s Settings) *CircuitBreaker {
	if s.Failures <= 0 {
		s.Failures = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &CircuitBreaker{settings: s}
}

// CacheBreaker returns a breaker tuned for the snapshot cache: it opens after
// three failures and probes again after 15s.
func CacheBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Settings{
		Name:          "snapshot-cache",
		Failures:      3,
		Cooldown:      15 * time.Second,
		IsFailure:     isFailure,
		OnStateChange: onStateChange,
	})
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.settings.Now().Before(cb.openUntil) {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	case StateHalfOpen:
		if cb.probing {
			return ErrTooManyRequests
		}
	default:
		return nil
	}
	cb.probing = true
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.settings.IsFailure == nil || cb.settings.IsFailure(err))

	switch cb.state {
	case StateHalfOpen:
		cb.probing = false
		if failed {
			cb.trip()
		} else {
			cb.transition(StateClosed)
		}
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.settings.Failures {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openUntil = cb.settings.Now().Add(cb.settings.Cooldown)
	cb.transition(StateOpen)
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	if cb.settings.OnStateChange != nil && from != to {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}
