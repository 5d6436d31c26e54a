// Package resilience shields the dispatch pipeline from flapping external
// collaborators. [Breaker] is a three-state circuit breaker
// (closed → open → half-open); the STT, LLM, and TTS wrappers in this
// package thread their provider's calls through one so that a backend that
// keeps failing is rejected immediately instead of stalling every utterance
// on a doomed network call.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is open and the reset timeout has not
// yet elapsed.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a single probe call through; success closes the
	// breaker, failure re-opens it.
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
	}
	return "unknown"
}

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
)

// BreakerConfig configures a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs, typically the provider kind.
	Name string

	// MaxFailures is the consecutive-failure count that trips the breaker.
	// Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe call. Default 30s.
	ResetTimeout time.Duration
}

// Breaker is a classic three-state circuit breaker.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		now:          time.Now,
	}
}

// State returns the breaker's current state, advancing open → half-open when
// the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		b.state = StateHalfOpen
	}
	return b.state
}

// Execute runs fn if the breaker allows it, recording the outcome. In the
// open state it returns [ErrOpen] without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.stateLocked() == StateOpen {
		b.mu.Unlock()
		return ErrOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			if b.state != StateOpen {
				slog.Warn("circuit opened", "breaker", b.name, "failures", b.failures)
			}
			b.state = StateOpen
			b.openedAt = b.now()
		}
		return err
	}

	if b.state != StateClosed {
		slog.Info("circuit closed", "breaker", b.name)
	}
	b.state = StateClosed
	b.failures = 0
	return nil
}
