package plugins

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/hashicorp/go-retryablehttp"
)

// Retry surrounds the sign, send and parse steps. Each attempt starts from
// a copy of the built request, so parameters are never re-serialized.
type Retry struct {
	overrides []svc.Classifier
	jitter    func(n int64) int64
}

// RetryOption configures a Retry plugin.
type RetryOption func(*Retry)

// WithClassifier consults c before the default classification rules.
// Classifiers added later are consulted first.
func WithClassifier(c svc.Classifier) RetryOption {
	return func(r *Retry) {
		r.overrides = append([]svc.Classifier{c}, r.overrides...)
	}
}

// WithJitter replaces the random source used to spread retry delays. jitter
// returns a value in [0, n].
func WithJitter(jitter func(n int64) int64) RetryOption {
	return func(r *Retry) {
		r.jitter = jitter
	}
}

// NewRetry returns the retry plugin.
func NewRetry(opts ...RetryOption) *Retry {
	r := &Retry{jitter: randomJitter}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func randomJitter(n int64) int64 {
	if n <= 0 {
		return 0
	}

	return rand.Int64N(n + 1) //nolint:gosec // jitter does not need a secure source
}

// Name implements svc.Plugin.
func (r *Retry) Name() string {
	return NameRetry
}

// ContributeHandlers implements svc.Plugin.
func (r *Retry) ContributeHandlers(step svc.Step) []svc.HandlerSpec {
	if step != svc.StepRetry {
		return nil
	}

	return []svc.HandlerSpec{{Step: svc.StepRetry, Name: HandlerRetry, Handler: r}}
}

// DefaultOptions implements svc.Plugin.
func (r *Retry) DefaultOptions() svc.Options {
	return nil
}

// Classify runs the override classifiers, then the default rules.
func (r *Retry) Classify(rc *svc.RequestContext, err error) svc.ErrorClassification {
	chain := make(svc.ClassifierChain, 0, len(r.overrides)+1)
	chain = append(chain, r.overrides...)
	chain = append(chain, svc.DefaultClassifier)

	return chain.Classify(rc, err)
}

// Handle implements svc.Handler.
func (r *Retry) Handle(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	maxRetries := rc.Options.Int(svc.OptMaxRetries, constants.DefaultMaxRetries)
	snapshot := rc.HTTPRequest.Clone()

	for {
		rc.Attempt++
		rc.HTTPRequest = snapshot.Clone()
		rc.HTTPResponse = nil
		rc.Data = nil
		rc.Error = nil
		rc.AttemptState = svc.AttemptPending

		err := next(ctx, rc)
		if err == nil {
			err = rc.Error
		}

		if err == nil {
			rc.AttemptState = svc.AttemptSucceeded

			return nil
		}

		rc.AttemptState = svc.AttemptFailed

		if ctx.Err() != nil {
			return cancelled(ctx, err)
		}

		class := r.Classify(rc, err)
		if !class.Retryable() || rc.RetryCount >= maxRetries {
			return err
		}

		if svc.ExpiredCredentialsCodes[svc.ErrorCode(err)] {
			if invalidator, ok := rc.CredentialsProvider.(svc.CredentialsInvalidator); ok {
				invalidator.Invalidate()
			}
		}

		delay := r.delay(rc, class)

		rc.Logger.Debug("Retrying request", map[string]interface{}{
			"service":        rc.ServiceID(),
			"operation":      rc.OperationName(),
			"attempt":        rc.Attempt,
			"classification": class.String(),
			"delay":          delay.String(),
			"error":          err.Error(),
		})

		rc.Errors = append(rc.Errors, err)

		if waitErr := wait(ctx, delay); waitErr != nil {
			return cancelled(ctx, err)
		}

		rc.RetryCount++
	}
}

func (r *Retry) delay(rc *svc.RequestContext, class svc.ErrorClassification) time.Duration {
	maxDelay := rc.Options.Duration(svc.OptRetryMaxDelay, constants.DefaultRetryMaxDelay)

	if class == svc.RetryableThrottling {
		base := rc.Options.Duration(svc.OptThrottleBaseDelay, constants.DefaultThrottleBaseDelay)

		var resp *http.Response
		if rc.HTTPResponse != nil {
			resp = &http.Response{StatusCode: rc.HTTPResponse.StatusCode, Header: rc.HTTPResponse.Header}
		}

		return retryablehttp.DefaultBackoff(base, maxDelay, rc.RetryCount, resp)
	}

	base := rc.Options.Duration(svc.OptRetryBaseDelay, constants.DefaultRetryBaseDelay)

	return Backoff(base, maxDelay, rc.RetryCount, r.jitter)
}

// Backoff returns the equal-jitter exponential delay before retry number
// retryCount+1: half of min(maxDelay, base*2^retryCount) plus a random share
// of the other half.
func Backoff(base, maxDelay time.Duration, retryCount int, jitter func(int64) int64) time.Duration {
	if base <= 0 {
		return 0
	}

	ceiling := base
	for range retryCount {
		ceiling *= constants.ExponentialBackoffBase
		if maxDelay > 0 && ceiling >= maxDelay {
			ceiling = maxDelay

			break
		}
	}

	if maxDelay > 0 && ceiling > maxDelay {
		ceiling = maxDelay
	}

	half := ceiling / 2

	if jitter == nil {
		return half
	}

	return half + time.Duration(jitter(int64(ceiling-half)))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cancelled(ctx context.Context, err error) error {
	timeoutErr := &svc.TimeoutError{}
	if errors.As(err, &timeoutErr) {
		return err
	}

	return &svc.TimeoutError{Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
}
