package source

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"ohlcv-pipeline/internal/model"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // fetches pass through
	StateOpen     State = 1 // provider considered down, fetches rejected
	StateHalfOpen State = 2 // one trial fetch allowed through
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

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops a run from hammering a provider that keeps failing.
// After maxFailures consecutive counted failures the breaker opens and
// rejects calls for resetTimeout, then lets one trial call through: success
// closes it, failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
	trialActive  bool
	now          func() time.Time

	// IsFailure decides which errors count toward tripping (default: all).
	IsFailure func(error) bool

	// OnStateChange is called on every transition (optional).
	OnStateChange func(name string, from, to State)
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn through the breaker. While half-open only one call is let
// through at a time; concurrent callers get ErrCircuitOpen until it resolves.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	trial := false
	if cb.state == StateHalfOpen {
		if cb.trialActive {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.trialActive = true
		trial = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trialActive = false
	}

	if err != nil && (cb.IsFailure == nil || cb.IsFailure(err)) {
		cb.failures++
		cb.lastFailure = cb.now()
		switch {
		case trial && cb.state == StateHalfOpen:
			cb.transition(StateOpen)
		case cb.state == StateClosed && cb.failures >= cb.maxFailures:
			cb.transition(StateOpen)
		}
		return err
	}

	if trial && cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	if cb.state == StateClosed {
		cb.failures = 0
	}
	return err
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	log.Printf("[breaker] %s: %s → %s", cb.name, from, to)
	if cb.OnStateChange != nil {
		cb.OnStateChange(cb.name, from, to)
	}
}

// guarded wraps a PriceSource with a breaker.
type guarded struct {
	src model.PriceSource
	cb  *CircuitBreaker
}

// Guard returns src wrapped so every fetch passes through cb. Only transient
// failures count toward tripping; a bad symbol never opens the breaker.
func Guard(src model.PriceSource, cb *CircuitBreaker) model.PriceSource {
	if cb.IsFailure == nil {
		cb.IsFailure = IsTransient
	}
	return &guarded{src: src, cb: cb}
}

func (g *guarded) Name() string { return g.src.Name() }

func (g *guarded) FetchBars(ctx context.Context, sym model.Symbol, start time.Time) ([]model.RawBar, error) {
	var bars []model.RawBar
	err := g.cb.Execute(func() error {
		var err error
		bars, err = g.src.FetchBars(ctx, sym, start)
		return err
	})
	return bars, err
}
