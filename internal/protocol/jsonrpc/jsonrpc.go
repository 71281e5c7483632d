// Package jsonrpc implements the JSON-RPC protocol: every call is a POST to
// "/" naming its operation in X-Amz-Target with the whole input as one JSON
// document.
package jsonrpc

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/internal/protocol/jsonutil"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Name is the protocol identifier.
const Name = string(svc.ProtocolJSONRPC)

const defaultJSONVersion = "1.0"

// Codec is the JSON-RPC codec.
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
	version := meta.JSONVersion
	if version == "" {
		version = defaultJSONVersion
	}

	req.Method = http.MethodPost
	req.Path = "/"
	req.Header.Set("Content-Type", "application/x-amz-json-"+version)

	if meta.TargetPrefix != "" {
		req.Header.Set("X-Amz-Target", meta.TargetPrefix+"."+op.Name)
	}

	req.Body.Reset()

	if err := jsonutil.Encode(&req.Body, op.Input, params); err != nil {
		return protocol.ValidationError(op, err)
	}

	return nil
}

// Deserialize implements svc.Codec.
func (c *Codec) Deserialize(op *svc.Operation, _ *svc.ServiceMetadata, resp *svc.HTTPResponse) (map[string]any, error) {
	if !protocol.Success(resp.StatusCode) {
		return nil, DecodeError(Name, op, resp)
	}

	out, err := jsonutil.Decode(op.Output, resp.Body)
	if err != nil {
		return nil, protocol.ParseError(Name, resp.StatusCode, err)
	}

	return out, nil
}

// DecodeError reads a JSON error envelope. The code comes from the
// X-Amzn-ErrorType header or the body's __type or code field.
func DecodeError(name string, op *svc.Operation, resp *svc.HTTPResponse) error {
	code := protocol.SanitizeErrorCode(resp.Header.Get("X-Amzn-ErrorType"))
	message := ""

	if len(strings.TrimSpace(string(resp.Body))) > 0 {
		doc, err := jsonutil.Parse(resp.Body)
		if err != nil {
			return protocol.ParseError(name, resp.StatusCode, fmt.Errorf("error body: %w", err))
		}

		obj, ok := doc.(map[string]any)
		if !ok {
			return protocol.ParseError(name, resp.StatusCode, fmt.Errorf("%w: error body is %T", protocol.ErrUnsupportedValue, doc))
		}

		if code == "" {
			code = firstString(obj, "__type", "code", "Code")
			code = protocol.SanitizeErrorCode(code)
		}

		message = firstString(obj, "message", "Message", "errorMessage")
	}

	if code == "" {
		code = protocol.StatusCodeName(resp.StatusCode)
	}

	return protocol.NewServiceError(op, code, message, resp.StatusCode, resp.RequestID())
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}

	return ""
}
