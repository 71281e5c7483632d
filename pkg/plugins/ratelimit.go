package plugins

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"golang.org/x/time/rate"
)

// RateLimiter throttles attempts client-side according to the rate_limit
// (attempts per second) and rate_burst options. A zero or missing
// rate_limit lets every attempt through.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter shared by every call of the clients it
// is installed on.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, constants.DefaultRateBurst)}
}

// Plugin returns the plugin waiting on l before each attempt.
func (l *RateLimiter) Plugin() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameRateLimit,
		Handlers: []svc.HandlerSpec{{
			Step:     svc.StepSend,
			Name:     HandlerRateLimit,
			Handler:  svc.HandlerFunc(l.wait),
			Position: svc.Front,
			Before:   []string{HandlerCircuit, HandlerSend},
		}},
	}
}

func (l *RateLimiter) configured(opts svc.Options) *rate.Limiter {
	limit := rate.Inf
	if perSecond := opts.Float(svc.OptRateLimit, 0); perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	burst := opts.Int(svc.OptRateBurst, constants.DefaultRateBurst)
	if burst < 1 {
		burst = constants.DefaultRateBurst
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limiter.Limit() != limit {
		l.limiter.SetLimit(limit)
	}

	if l.limiter.Burst() != burst {
		l.limiter.SetBurst(burst)
	}

	return l.limiter
}

func (l *RateLimiter) wait(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	if err := l.configured(rc.Options).Wait(ctx); err != nil {
		return &svc.TimeoutError{Err: err}
	}

	return next(ctx, rc)
}
