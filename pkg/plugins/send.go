package plugins

import (
	"context"
	"errors"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Send transmits the signed request through the client's transport and
// hands the response to the parse step.
func Send() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameSend,
		Handlers: []svc.HandlerSpec{{
			Step:     svc.StepSend,
			Name:     HandlerSend,
			Handler:  svc.HandlerFunc(transmit),
			Position: svc.Back,
		}},
	}
}

func transmit(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	if rc.Transport == nil {
		return svc.ErrNoTransport
	}

	rc.AttemptState = svc.AttemptSent

	resp, err := rc.Transport.Transmit(ctx, rc.HTTPRequest, rc.Options.Duration(svc.OptHTTPTimeout, 0))
	if err != nil {
		return transportFailure(err)
	}

	rc.HTTPResponse = resp

	return next(ctx, rc)
}

func transportFailure(err error) error {
	connErr := &svc.ConnectionError{}
	timeoutErr := &svc.TimeoutError{}

	if errors.As(err, &connErr) || errors.As(err, &timeoutErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &svc.TimeoutError{Err: err}
	}

	return &svc.ConnectionError{Err: err}
}
