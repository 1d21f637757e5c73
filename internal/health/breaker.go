// Package health isolates unhealthy platforms: a per-platform circuit
// breaker fed by live traffic outcomes, an adaptive retry policy wrapping
// individual attempts, and standalone DNS/HTTP reachability probes.
package health

import (
	"sync"
	"time"

	"github.com/riftwatch/rift-harvester/internal/telemetry"
)

// State is the circuit breaker state for one platform.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String implements fmt.Stringer for logs.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig sets the failure threshold and how long a tripped platform
// stays open before a probe is allowed.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Breaker tracks consecutive failures per platform and short-circuits calls
// once the threshold is reached. It is fed exclusively by live traffic
// outcomes; standalone health probes never touch it.
type Breaker struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	states map[string]*breakerState
	now    func() time.Time
}

type breakerState struct {
	failures    int
	lastFailure time.Time
	openedUntil time.Time
	halfOpen    bool
	probing     bool
}

// NewBreaker creates a Breaker, applying defaults for zero config values.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		cfg:    cfg,
		states: make(map[string]*breakerState),
		now:    time.Now,
	}
}

// Allow reports whether a request to key may proceed. While OPEN it returns
// false without any side effect. Once the reset timeout elapses, exactly one
// caller is admitted as the HALF_OPEN probe; concurrent callers keep getting
// false until that probe's outcome is recorded.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		return true
	}
	now := b.now()
	if st.openedUntil.After(now) {
		return false
	}
	if !st.openedUntil.IsZero() {
		// Reset timeout elapsed: admit a single probe.
		if st.probing {
			return false
		}
		st.halfOpen = true
		st.probing = true
		telemetry.SetBreakerState(key, int(StateHalfOpen))
	}
	return true
}

// OnSuccess records a successful call, closing the circuit.
func (b *Breaker) OnSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		return
	}
	st.failures = 0
	st.openedUntil = time.Time{}
	st.halfOpen = false
	st.probing = false
	telemetry.SetBreakerState(key, int(StateClosed))
}

// OnFailure records a failed call. Reaching the threshold in CLOSED opens the
// circuit for ResetTimeout; a failed HALF_OPEN probe re-opens it for twice
// that, so flapping platforms back off progressively.
func (b *Breaker) OnFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		st = &breakerState{}
		b.states[key] = st
	}
	now := b.now()
	st.failures++
	st.lastFailure = now

	if st.halfOpen {
		st.openedUntil = now.Add(2 * b.cfg.ResetTimeout)
		st.halfOpen = false
		st.probing = false
		telemetry.SetBreakerState(key, int(StateOpen))
		return
	}
	if st.failures >= b.cfg.FailureThreshold {
		st.openedUntil = now.Add(b.cfg.ResetTimeout)
		telemetry.SetBreakerState(key, int(StateOpen))
	}
}

// OnProbeAbandoned releases the HALF_OPEN probe slot without recording an
// outcome, for probes cut short before the platform could answer (context
// cancellation, shutdown). The circuit stays as it was and the next Allow
// admits a fresh probe.
func (b *Breaker) OnProbeAbandoned(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if st, ok := b.states[key]; ok {
		st.probing = false
	}
}

// State returns the current state for key.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[key]
	if !ok {
		return StateClosed
	}
	now := b.now()
	switch {
	case st.openedUntil.After(now):
		return StateOpen
	case st.halfOpen:
		return StateHalfOpen
	case !st.openedUntil.IsZero():
		// Timeout elapsed but no probe admitted yet.
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Failures returns the consecutive failure count for key, for diagnostics.
func (b *Breaker) Failures(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.states[key]; ok {
		return st.failures
	}
	return 0
}
