package breaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
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

// ErrOpen the breaker rejected the call without running it
var ErrOpen = errors.New("circuit breaker is open")

// Config circuit breaker configuration
type Config struct {
	// FailureThreshold consecutive failures that open the circuit
	FailureThreshold uint32
	// OpenTimeout time spent open before a single trial call is let through
	OpenTimeout time.Duration
	// IsSuccessful classifies call results; nil counts only nil errors as success
	IsSuccessful func(err error) bool
	// OnStateChange callback when state changes
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to a flaky dependency
type CircuitBreaker struct {
	name   string
	cfg    Config
	now    func() time.Time
	mu     sync.Mutex
	state  State
	fails  uint32
	expiry time.Time
	trial  bool
}

// New creates a circuit breaker
func New(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return err == nil }
	}
	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

// Do runs fn unless the circuit is open
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(cb.cfg.IsSuccessful(err))
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.current()
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.current() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.trial {
			return ErrOpen
		}
		cb.trial = true
	}
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.current()
	if success {
		cb.fails = 0
		if state == StateHalfOpen {
			cb.set(StateClosed)
		}
		return
	}

	cb.fails++
	if state == StateHalfOpen || cb.fails >= cb.cfg.FailureThreshold {
		cb.set(StateOpen)
	}
}

func (cb *CircuitBreaker) current() State {
	if cb.state == StateOpen && !cb.now().Before(cb.expiry) {
		cb.set(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) set(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.fails = 0
	cb.trial = false
	if to == StateOpen {
		cb.expiry = cb.now().Add(cb.cfg.OpenTimeout)
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
