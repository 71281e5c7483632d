package plugins

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fivetwenty-io/svc-client/internal/protocol/jsonrpc"
	"github.com/fivetwenty-io/svc-client/internal/protocol/query"
	"github.com/fivetwenty-io/svc-client/internal/protocol/restjson"
	"github.com/fivetwenty-io/svc-client/internal/protocol/restxml"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// ErrUnknownProtocol is returned for a service whose protocol has no codec.
var ErrUnknownProtocol = errors.New("unknown protocol")

var codecs = map[svc.Protocol]svc.Codec{
	svc.ProtocolJSONRPC:  jsonrpc.New(),
	svc.ProtocolQuery:    query.New(),
	svc.ProtocolRESTJSON: restjson.New(),
	svc.ProtocolRESTXML:  restxml.New(),
}

// CodecFor returns the codec of protocol.
func CodecFor(protocol svc.Protocol) (svc.Codec, error) {
	codec, ok := codecs[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocol)
	}

	return codec, nil
}

// Protocols returns the supported protocols.
func Protocols() []string {
	out := make([]string, 0, len(codecs))
	for p := range codecs {
		out = append(out, string(p))
	}

	sort.Strings(out)

	return out
}

// Protocol encodes the request in the build step and decodes the response
// in the parse step, using the codec named by the service metadata.
func Protocol() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameProtocol,
		Handlers: []svc.HandlerSpec{
			{
				Step:    svc.StepBuild,
				Name:    HandlerBuild,
				Handler: svc.HandlerFunc(buildRequest),
				After:   []string{HandlerEndpoint},
			},
			{
				Step:    svc.StepParse,
				Name:    HandlerParse,
				Handler: svc.HandlerFunc(parseResponse),
			},
		},
	}
}

func codecOf(rc *svc.RequestContext) (svc.Codec, error) {
	if rc.Service == nil {
		return nil, fmt.Errorf("%w: no service metadata", ErrUnknownProtocol)
	}

	return CodecFor(rc.Service.Protocol)
}

func buildRequest(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	codec, err := codecOf(rc)
	if err != nil {
		return err
	}

	if err := codec.Serialize(rc.Operation, rc.Service, rc.Params, rc.HTTPRequest); err != nil {
		return err
	}

	return next(ctx, rc)
}

func parseResponse(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	if rc.HTTPResponse == nil {
		return next(ctx, rc)
	}

	codec, err := codecOf(rc)
	if err != nil {
		return err
	}

	data, err := codec.Deserialize(rc.Operation, rc.Service, rc.HTTPResponse)
	if err != nil {
		return err
	}

	rc.Data = data

	return next(ctx, rc)
}
