package infra

import (
	"errors"
	"sync"
	"time"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Guards the backend ledger client (Closed → Open → Half-Open). While open,
// calls fail immediately so the cashier sees a retryable error instead of
// waiting on a timeout for every click.
//
// Only transport failures and 5xx answers count as failures; a 4xx is a valid
// answer from a healthy backend.

// CBState represents the current circuit breaker state.
type CBState int

const (
	CBClosed   CBState = iota // requests flow
	CBOpen                    // fast-fail
	CBHalfOpen                // probing
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when Execute is called while the CB is open.
var ErrCircuitOpen = errors.New("backend circuit breaker is open")

// CircuitBreakerConfig holds tunable parameters.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures to trip open
	SuccessThreshold int           // consecutive half-open successes to close
	OpenTimeout      time.Duration // time spent open before probing
	// OnStateChange, when set, is called after every transition, outside the
	// breaker lock.
	OnStateChange func(from, to CBState)
}

// DefaultCBConfig is tuned for an interactive terminal: trip fast, probe
// again after a short pause.
func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      15 * time.Second,
	}
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     CBState
	failures  int
	successes int
	openedAt  time.Time
	cfg       CircuitBreakerConfig
	now       func() time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	return &CircuitBreaker{state: CBClosed, cfg: cfg, now: time.Now}
}

// State returns the current state, moving open → half-open once the timeout
// has elapsed.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	from, to := cb.refresh()
	cb.mu.Unlock()
	cb.notify(from, to)
	return to
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	from := cb.state
	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return err
}

// refresh must be called under lock.
func (cb *CircuitBreaker) refresh() (from, to CBState) {
	from = cb.state
	if cb.state == CBOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.state = CBHalfOpen
		cb.successes = 0
	}
	return from, cb.state
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	switch cb.state {
	case CBClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	case CBHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case CBClosed:
		cb.failures = 0
	case CBHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = CBClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = CBOpen
	cb.openedAt = cb.now()
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) notify(from, to CBState) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
