package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// ErrInvalidEndpoint is returned for an endpoint that is not a URL with a host.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Endpoint sets the request endpoint from the endpoint option, the
// service's global endpoint, or the regional endpoint pattern.
func Endpoint() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameEndpoint,
		Handlers: []svc.HandlerSpec{{
			Step:     svc.StepBuild,
			Name:     HandlerEndpoint,
			Handler:  svc.HandlerFunc(resolveEndpoint),
			Position: svc.Front,
		}},
	}
}

func resolveEndpoint(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	endpoint, err := ResolveEndpoint(rc.Service, rc.Options)
	if err != nil {
		return &svc.ClientValidationError{Operation: rc.OperationName(), Err: err}
	}

	rc.HTTPRequest.Endpoint = endpoint

	return next(ctx, rc)
}

// ResolveEndpoint returns the endpoint a service is called at.
func ResolveEndpoint(meta *svc.ServiceMetadata, opts svc.Options) (*url.URL, error) {
	if configured := opts.String(svc.OptEndpoint); configured != "" {
		return parseEndpoint(configured)
	}

	if meta != nil && meta.GlobalEndpoint != "" {
		return parseEndpoint(meta.GlobalEndpoint)
	}

	region := opts.String(svc.OptRegion)
	if region == "" {
		return nil, svc.ErrMissingRegion
	}

	prefix := ""
	if meta != nil {
		prefix = meta.EndpointPrefix
	}

	host := strings.NewReplacer("{service}", prefix, "{region}", region).Replace(constants.RegionalEndpointPattern)

	return parseEndpoint(host)
}

func parseEndpoint(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = constants.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidEndpoint, raw, err)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w %q: no host", ErrInvalidEndpoint, raw)
	}

	return u, nil
}
