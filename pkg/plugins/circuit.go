package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Circuit states reported by CircuitBreaker.State.
const (
	StateClosed   = constants.StatusClosed
	StateOpen     = constants.StatusOpen
	StateHalfOpen = constants.StatusHalfOpen
)

// ErrCircuitOpen is returned for attempts made while the circuit is open.
var ErrCircuitOpen = constants.ErrCircuitOpen

// CircuitBreakerConfig holds the circuit breaker thresholds.
type CircuitBreakerConfig struct {
	Threshold        int           // Number of failures before opening
	Timeout          time.Duration // Time before trying again
	SuccessThreshold int           // Number of successes to close
}

// CircuitBreaker stops attempts to a service after repeated connection
// failures or server errors, and lets one trial call through once Timeout has
// passed. It is safe for concurrent use.
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	failures    int
	successes   int
	state       string
	lastFailure time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = &CircuitBreakerConfig{
			Threshold:        constants.CircuitBreakerThreshold,
			Timeout:          constants.CircuitBreakerTimeout,
			SuccessThreshold: constants.CircuitBreakerSuccessThreshold,
		}
	}

	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  constants.StatusClosed,
	}
}

// WithClock overrides the breaker's time source.
func (b *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	b.now = now

	return b
}

// State returns closed, open or half-open.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Allow returns ErrCircuitOpen while the circuit is open.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != constants.StatusOpen {
		return nil
	}

	if b.now().Sub(b.lastFailure) > b.config.Timeout {
		b.state = constants.StatusHalfOpen
		b.successes = 0

		return nil
	}

	return constants.ErrCircuitOpen
}

// Record updates the circuit with the outcome of one attempt.
func (b *CircuitBreaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failures++
		b.lastFailure = b.now()

		if b.failures >= b.config.Threshold || b.state == constants.StatusHalfOpen {
			b.state = constants.StatusOpen
		}

		return
	}

	switch b.state {
	case constants.StatusHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = constants.StatusClosed
			b.failures = 0
		}
	case constants.StatusClosed:
		b.failures = 0
	}
}

// Plugin returns the plugin guarding attempts with b.
func (b *CircuitBreaker) Plugin() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameCircuitBreaker,
		Handlers: []svc.HandlerSpec{{
			Step:    svc.StepSend,
			Name:    HandlerCircuit,
			Handler: svc.HandlerFunc(b.guard),
			Before:  []string{HandlerSend},
		}},
	}
}

func (b *CircuitBreaker) guard(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	if err := b.Allow(); err != nil {
		return fmt.Errorf("%s: %w", rc.ServiceID(), err)
	}

	err := next(ctx, rc)

	b.Record(attemptFailed(rc, err))

	return err
}

func attemptFailed(rc *svc.RequestContext, err error) bool {
	connErr := &svc.ConnectionError{}
	timeoutErr := &svc.TimeoutError{}

	if errors.As(err, &connErr) || errors.As(err, &timeoutErr) {
		return true
	}

	return rc.HTTPResponse != nil && rc.HTTPResponse.StatusCode >= http.StatusInternalServerError
}
