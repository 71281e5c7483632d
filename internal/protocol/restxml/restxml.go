// Package restxml implements the REST+XML protocol.
package restxml

import (
	"bytes"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/internal/protocol/rest"
	"github.com/fivetwenty-io/svc-client/internal/protocol/xmlutil"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Name is the protocol identifier.
const Name = string(svc.ProtocolRESTXML)

// Codec is the REST+XML codec.
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
func (c *Codec) Serialize(op *svc.Operation, meta *svc.ServiceMetadata, params map[string]any, req *svc.HTTPRequest) error {
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

		ns := firstNonEmpty(payload.XMLNamespace, payload.Shape.XMLNamespace, meta.XMLNamespace)
		req.Header.Set("Content-Type", "application/xml")

		if err := xmlutil.EncodeDocument(&req.Body, payload.WireName(), ns, payload.Shape, v); err != nil {
			return protocol.ValidationError(op, err)
		}

		return nil
	}

	if !rest.HasBodyMembers(op.Input, params) {
		return nil
	}

	root := op.Input.LocationName
	if root == "" {
		root = op.Name + "Request"
	}

	req.Header.Set("Content-Type", "application/xml")

	ns := firstNonEmpty(op.Input.XMLNamespace, meta.XMLNamespace)
	if err := xmlutil.EncodeDocument(&req.Body, root, ns, op.Input, params); err != nil {
		return protocol.ValidationError(op, err)
	}

	return nil
}

// Deserialize implements svc.Codec.
func (c *Codec) Deserialize(op *svc.Operation, _ *svc.ServiceMetadata, resp *svc.HTTPResponse) (map[string]any, error) {
	if !protocol.Success(resp.StatusCode) {
		return nil, DecodeError(Name, op, resp)
	}

	out := map[string]any{}
	payload, hasPayload := rest.ExtractPayload(op.Output, resp, out)

	shape := op.Output
	target := ""

	switch {
	case hasPayload && payload.Shape != nil && payload.Shape.Type == svc.TypeStructure:
		shape = payload.Shape
		target = payload.Name
	case hasPayload:
		shape = nil
	}

	if shape != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
		root, err := xmlutil.Parse(bytes.NewReader(resp.Body))
		if err != nil {
			return nil, protocol.ParseError(Name, resp.StatusCode, err)
		}

		body, err := xmlutil.Structure(root, shape)
		if err != nil {
			return nil, protocol.ParseError(Name, resp.StatusCode, err)
		}

		if target != "" {
			out[target] = body
		} else {
			for k, v := range body {
				out[k] = v
			}
		}
	}

	if err := rest.ExtractLocations(op.Output, resp, out); err != nil {
		return nil, protocol.ParseError(Name, resp.StatusCode, err)
	}

	return out, nil
}

// DecodeError reads an XML error document: either a bare <Error> or one
// wrapped in <ErrorResponse>.
func DecodeError(name string, op *svc.Operation, resp *svc.HTTPResponse) error {
	code, message, requestID := "", "", resp.RequestID()

	if len(bytes.TrimSpace(resp.Body)) > 0 {
		root, err := xmlutil.Parse(bytes.NewReader(resp.Body))
		if err != nil {
			return protocol.ParseError(name, resp.StatusCode, err)
		}

		errNode := root.Find("Error")
		if errNode == nil {
			errNode = root
		}

		code = errNode.ChildText("Code")
		message = errNode.ChildText("Message")

		for _, key := range []string{"RequestId", "RequestID"} {
			if n := root.Find(key); n != nil && n.Text != "" {
				requestID = n.Text

				break
			}
		}
	}

	if code == "" {
		code = protocol.StatusCodeName(resp.StatusCode)
	}

	return protocol.NewServiceError(op, code, message, resp.StatusCode, requestID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
