// Package restjson implements the REST+JSON protocol.
package restjson

import (
	"bytes"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/internal/protocol/jsonrpc"
	"github.com/fivetwenty-io/svc-client/internal/protocol/jsonutil"
	"github.com/fivetwenty-io/svc-client/internal/protocol/rest"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Name is the protocol identifier.
const Name = string(svc.ProtocolRESTJSON)

// Codec is the REST+JSON codec.
type Codec struct{}

// New returns the codec.
func New() *Codec {
	return &Codec{}
}

// Name implements svc.Codec.
func (c *Codec) Name() string {
	return Name
}

// Serialize implements svc.Codec.
func (c *Codec) Serialize(op *svc.Operation, _ *svc.ServiceMetadata, params map[string]any, req *svc.HTTPRequest) error {
	if err := rest.BuildLocations(op, params, req); err != nil {
		return err
	}

	req.Body.Reset()

	payload, hasPayload, err := rest.BuildPayload(op, params, req)
	if err != nil {
		return err
	}

	if hasPayload {
		if payload.Shape == nil || payload.Shape.Type != svc.TypeStructure {
			return nil
		}

		v, ok, err := rest.StructurePayload(op, payload, params)
		if err != nil || !ok {
			return err
		}

		req.Header.Set("Content-Type", "application/json")

		if err := jsonutil.Encode(&req.Body, payload.Shape, v); err != nil {
			return protocol.ValidationError(op, err)
		}

		return nil
	}

	if !rest.HasBodyMembers(op.Input, params) {
		return nil
	}

	req.Header.Set("Content-Type", "application/json")

	if err := jsonutil.Encode(&req.Body, op.Input, params); err != nil {
		return protocol.ValidationError(op, err)
	}

	return nil
}

// Deserialize implements svc.Codec.
func (c *Codec) Deserialize(op *svc.Operation, _ *svc.ServiceMetadata, resp *svc.HTTPResponse) (map[string]any, error) {
	if !protocol.Success(resp.StatusCode) {
		return nil, jsonrpc.DecodeError(Name, op, resp)
	}

	out := map[string]any{}

	payload, hasPayload := rest.ExtractPayload(op.Output, resp, out)

	switch {
	case hasPayload && payload.Shape != nil && payload.Shape.Type == svc.TypeStructure:
		if len(bytes.TrimSpace(resp.Body)) > 0 {
			v, err := jsonutil.Decode(payload.Shape, resp.Body)
			if err != nil {
				return nil, protocol.ParseError(Name, resp.StatusCode, err)
			}

			out[payload.Name] = v
		}
	case !hasPayload:
		body, err := jsonutil.Decode(op.Output, resp.Body)
		if err != nil {
			return nil, protocol.ParseError(Name, resp.StatusCode, err)
		}

		for k, v := range body {
			out[k] = v
		}
	}

	if err := rest.ExtractLocations(op.Output, resp, out); err != nil {
		return nil, protocol.ParseError(Name, resp.StatusCode, err)
	}

	return out, nil
}
