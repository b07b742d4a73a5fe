package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker stops calling a failing dependency for a cool-down period.
// After the cool-down a limited number of probe calls decide whether to close again.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	timeout          time.Duration
	halfOpenMaxCalls uint32

	mu              sync.Mutex
	state           State
	failures        uint32
	lastFailureTime time.Time
	halfOpenCalls   uint32
	halfOpenOK      uint32
	requests        uint64
	successes       uint64

	onStateChange func(name string, from, to State)
	logger        *logrus.Logger
	now           func() time.Time
}

// New creates a new circuit breaker
func New(name string, maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	return NewWithLogger(name, maxFailures, timeout, logrus.New())
}

// NewWithLogger creates a new circuit breaker with a custom logger
func NewWithLogger(name string, maxFailures uint32, timeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		timeout:          timeout,
		halfOpenMaxCalls: 1,
		state:            StateClosed,
		logger:           logger,
		now:              time.Now,
	}
}

// WithHalfOpenCalls sets how many successful probes close the circuit again.
func (cb *CircuitBreaker) WithHalfOpenCalls(n uint32) *CircuitBreaker {
	if n > 0 {
		cb.halfOpenMaxCalls = n
	}
	return cb
}

// OnStateChange registers a hook fired after each transition, outside the lock.
func (cb *CircuitBreaker) OnStateChange(hook func(name string, from, to State)) *CircuitBreaker {
	cb.onStateChange = hook
	return cb
}

// Execute executes fn if the circuit breaker is in a state that allows it
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	state, ok := cb.acquire()
	if !ok {
		return &CircuitBreakerError{Name: cb.name, State: state}
	}

	err := fn(ctx)
	cb.release(state, err)
	return err
}

// acquire admits a call and returns the state it was admitted in.
func (cb *CircuitBreaker) acquire() (State, bool) {
	cb.mu.Lock()
	from := cb.state
	cb.advanceLocked()
	to := cb.state

	admitted := false
	switch cb.state {
	case StateClosed:
		admitted = true
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.halfOpenMaxCalls {
			cb.halfOpenCalls++
			admitted = true
		}
	}
	if admitted {
		cb.requests++
	}
	cb.mu.Unlock()

	cb.notify(from, to)
	return to, admitted
}

func (cb *CircuitBreaker) release(admittedIn State, err error) {
	cb.mu.Lock()
	from := cb.state

	if err == nil {
		cb.successes++
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.halfOpenOK++
			if cb.halfOpenOK >= cb.halfOpenMaxCalls {
				cb.resetLocked()
			}
		}
	} else if !errors.Is(err, context.Canceled) {
		cb.failures++
		cb.lastFailureTime = cb.now()
		switch {
		case cb.state == StateHalfOpen || admittedIn == StateHalfOpen:
			cb.state = StateOpen
		case cb.state == StateClosed && cb.failures >= cb.maxFailures:
			cb.state = StateOpen
		}
	}

	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

// advanceLocked moves an open breaker to half-open once the cool-down has passed.
func (cb *CircuitBreaker) advanceLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.timeout {
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	}
}

func (cb *CircuitBreaker) resetLocked() {
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from == to {
		return
	}

	entry := cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from":            from.String(),
		"state":           to.String(),
	})
	if to == StateOpen {
		entry.Warn("Circuit breaker opened due to failures")
	} else {
		entry.Info("Circuit breaker state changed")
	}

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.resetLocked()
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	from := cb.state
	cb.advanceLocked()
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return to
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state,
		Failures:        cb.failures,
		Requests:        cb.requests,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"-"`
	Failures        uint32    `json:"failures"`
	Requests        uint64    `json:"requests"`
	Successes       uint64    `json:"successes"`
	LastFailureTime time.Time `json:"lastFailureTime"`
}

// CircuitBreakerError represents an error when the circuit breaker rejects a call
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
