package plugins

import (
	"context"
	"runtime"
	"strconv"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/google/uuid"
)

// Version is the client version reported in the User-Agent header. Set at
// build time with -ldflags.
var Version = "dev"

// UserAgent sets the User-Agent header, appending the user_agent option.
func UserAgent() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameUserAgent,
		Handlers: []svc.HandlerSpec{{
			Step:    svc.StepBuild,
			Name:    HandlerUserAgent,
			Handler: svc.HandlerFunc(setUserAgent),
			After:   []string{HandlerBuild},
		}},
	}
}

// UserAgentString returns the User-Agent value for the given suffix.
func UserAgentString(suffix string) string {
	ua := constants.UserAgentPrefix + "/" + Version + " go/" + runtime.Version()
	if suffix != "" {
		ua += " " + suffix
	}

	return ua
}

func setUserAgent(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	rc.HTTPRequest.Header.Set("User-Agent", UserAgentString(rc.Options.String(svc.OptUserAgent)))

	return next(ctx, rc)
}

// InvocationID tags every attempt of a call with the same random id and
// with its attempt number.
func InvocationID() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameInvocationID,
		Handlers: []svc.HandlerSpec{
			{
				Step:    svc.StepBuild,
				Name:    HandlerInvocationID,
				Handler: svc.HandlerFunc(setInvocationID),
				After:   []string{HandlerBuild},
			},
			{
				Step:     svc.StepSign,
				Name:     HandlerAttemptHeader,
				Handler:  svc.HandlerFunc(setAttemptHeader),
				Position: svc.Front,
			},
		},
	}
}

func setInvocationID(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	rc.HTTPRequest.Header.Set(constants.InvocationIDHeader, uuid.NewString())

	return next(ctx, rc)
}

func setAttemptHeader(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	attempt := rc.Attempt
	if attempt < 1 {
		attempt = 1
	}

	maxAttempts := rc.Options.Int(svc.OptMaxRetries, constants.DefaultMaxRetries) + 1

	rc.HTTPRequest.Header.Set(constants.RequestAttemptHeader, attemptHeader(attempt, maxAttempts))

	return next(ctx, rc)
}

func attemptHeader(attempt, maxAttempts int) string {
	return "attempt=" + strconv.Itoa(attempt) + "; max=" + strconv.Itoa(maxAttempts)
}
