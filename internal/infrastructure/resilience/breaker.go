package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned while the breaker refuses calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeLimit is returned when every half-open probe slot is taken.
	ErrProbeLimit = errors.New("circuit breaker probe limit reached")
)

// IsRejected reports whether err came from the breaker refusing a call
// rather than from the call itself.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrProbeLimit)
}

// State is the breaker position. The numeric values are exported as a
// metric gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Counts tracks outcomes within the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Settings configures a Breaker. Zero values take defaults.
type Settings struct {
	// Probes is how many trial calls run while half-open, and how many must
	// succeed to close again. Default 1.
	Probes uint32
	// Window clears closed-state counts periodically. Default 60s.
	Window time.Duration
	// Cooldown is how long the breaker stays open. Default 30s.
	Cooldown time.Duration
	// Trip decides after each failure whether to open. Default: five
	// consecutive failures.
	Trip func(Counts) bool
	// IsSuccessful classifies a call's error. Default: err == nil.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to State)
	// Now is the clock. Default time.Now.
	Now func() time.Time
}

// FailureThreshold trips after n consecutive failures
func FailureThreshold(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

// Breaker refuses calls to a dependency that keeps failing. A call whose
// context was canceled by the caller is neither a success nor a failure.
type Breaker struct {
	name string
	cfg  Settings

	mu     sync.Mutex
	state  State
	gen    uint64
	counts Counts
	until  time.Time // end of the current window or cooldown
}

// New creates a breaker
func New(name string, s Settings) *Breaker {
	if s.Probes == 0 {
		s.Probes = 1
	}
	if s.Window <= 0 {
		s.Window = time.Minute
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Trip == nil {
		s.Trip = FailureThreshold(5)
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool { return err == nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	b := &Breaker{name: name, cfg: s}
	b.until = s.Now().Add(s.Window)
	return b
}

// Name returns the breaker name
func (b *Breaker) Name() string { return b.name }

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.cfg.Now())
	return b.state
}

// Counts returns a snapshot of the current generation's counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Call runs fn if the breaker admits it and records the outcome. A panic
// in fn counts as a failure and is re-raised.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	gen, err := b.admit()
	if err != nil {
		return zero, err
	}

	done := false
	defer func() {
		if !done {
			b.settle(gen, false)
		}
	}()

	v, err := fn()
	done = true
	if errors.Is(err, context.Canceled) {
		b.release(gen)
		return v, err
	}
	b.settle(gen, b.cfg.IsSuccessful(err))
	return v, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.cfg.Now())
	switch b.state {
	case StateOpen:
		return b.gen, ErrCircuitOpen
	case StateHalfOpen:
		if b.counts.Requests >= b.cfg.Probes {
			return b.gen, ErrProbeLimit
		}
	}
	b.counts.Requests++
	return b.gen, nil
}

// release gives back an admitted slot without recording an outcome
func (b *Breaker) release(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen == b.gen && b.counts.Requests > 0 {
		b.counts.Requests--
	}
}

func (b *Breaker) settle(gen uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	b.advance(now)
	// Outcomes from an earlier generation describe a state that is gone.
	if gen != b.gen {
		return
	}

	if ok {
		b.counts.success()
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.Probes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.failure()
	if b.state == StateHalfOpen || b.cfg.Trip(b.counts) {
		b.transition(StateOpen, now)
	}
}

// advance applies the time-based transitions
func (b *Breaker) advance(now time.Time) {
	// half-open lasts until the probes settle
	if b.state == StateHalfOpen || now.Before(b.until) {
		return
	}
	switch b.state {
	case StateClosed:
		b.reset(now)
	case StateOpen:
		b.transition(StateHalfOpen, now)
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.reset(now)

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) reset(now time.Time) {
	b.gen++
	b.counts = Counts{}
	switch b.state {
	case StateClosed:
		b.until = now.Add(b.cfg.Window)
	case StateOpen:
		b.until = now.Add(b.cfg.Cooldown)
	default:
		b.until = time.Time{}
	}
}
