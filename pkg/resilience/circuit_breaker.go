package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitOpenError is returned when a guarded call is refused because the
// named circuit is open.
type CircuitOpenError struct {
	Name string
}

func (e CircuitOpenError) Error() string {
	return "circuit open: " + e.Name
}

// IsCircuitOpen returns true when the error is a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var co CircuitOpenError
	return errors.As(err, &co)
}

// State is the lifecycle position of a named circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
	StateUnknown
)

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

// Options configure one circuit. Zero values fall back to defaults.
type Options struct {
	FailureThreshold         int
	ResetTimeout             time.Duration
	HalfOpenSuccessThreshold int
}

const (
	DefaultFailureThreshold         = 5
	DefaultResetTimeout             = 30 * time.Second
	DefaultHalfOpenSuccessThreshold = 2
)

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = DefaultFailureThreshold
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = DefaultResetTimeout
	}
	if o.HalfOpenSuccessThreshold <= 0 {
		o.HalfOpenSuccessThreshold = DefaultHalfOpenSuccessThreshold
	}
	return o
}

type circuit struct {
	state             State
	failures          int
	lastFailureAt     time.Time
	halfOpenSuccesses int
	opts              Options
}

// Registry owns a set of named circuits guarding unreliable upstreams.
// It is explicitly constructed and injected, never module-level state,
// so tests can build isolated instances. Unknown circuit names fail
// open: execution is always allowed for them.
type Registry struct {
	mu       sync.Mutex
	circuits map[string]*circuit
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		circuits: make(map[string]*circuit),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Register creates (or reconfigures) a named circuit in CLOSED state.
func (r *Registry) Register(name string, opts Options) {
	if r == nil || name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circuits[name] = &circuit{state: StateClosed, opts: opts.withDefaults()}
}

// CanExecute reports whether a call to the named upstream is allowed.
// OPEN circuits flip to HALF_OPEN the moment the reset timeout has
// elapsed since the last failure.
func (r *Registry) CanExecute(name string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return true
	}
	switch c.state {
	case StateOpen:
		if r.now().Sub(c.lastFailureAt) > c.opts.ResetTimeout {
			c.state = StateHalfOpen
			c.halfOpenSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess notes a successful call and may close a HALF_OPEN
// circuit once enough consecutive successes accumulate.
func (r *Registry) RecordSuccess(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return
	}
	switch c.state {
	case StateHalfOpen:
		c.halfOpenSuccesses++
		if c.halfOpenSuccesses >= c.opts.HalfOpenSuccessThreshold {
			c.state = StateClosed
			c.failures = 0
			c.halfOpenSuccesses = 0
		}
	case StateClosed:
		c.failures = 0
	}
}

// RecordFailure notes a failed call. CLOSED circuits open at the failure
// threshold; a single failure re-opens a HALF_OPEN circuit.
func (r *Registry) RecordFailure(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return
	}
	c.lastFailureAt = r.now()
	switch c.state {
	case StateClosed:
		c.failures++
		if c.failures >= c.opts.FailureThreshold {
			c.state = StateOpen
		}
	case StateHalfOpen:
		c.state = StateOpen
		c.halfOpenSuccesses = 0
	}
}

// Reset forces the named circuit back to CLOSED with zeroed counters.
func (r *Registry) Reset(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return
	}
	c.state = StateClosed
	c.failures = 0
	c.halfOpenSuccesses = 0
	c.lastFailureAt = time.Time{}
}

// GetState reports the current state, StateUnknown for unregistered names.
func (r *Registry) GetState(name string) State {
	if r == nil {
		return StateUnknown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return StateUnknown
	}
	return c.state
}
