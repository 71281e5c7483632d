// Package query implements the Query protocol: a form-encoded POST naming
// the Action and Version, answered with an XML document.
package query

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/internal/protocol/restxml"
	"github.com/fivetwenty-io/svc-client/internal/protocol/xmlutil"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Name is the protocol identifier.
const Name = string(svc.ProtocolQuery)

// Codec is the Query codec.
type Codec struct{}

// New returns the codec.
func New() *Codec {
	return &Codec{}
}

// Name implements svc.Codec.
func (c *Codec) Name() string {
	return Name
}

// Serialize implements svc.Codec. Pairs are written straight into the body
// buffer in shape order.
func (c *Codec) Serialize(op *svc.Operation, meta *svc.ServiceMetadata, params map[string]any, req *svc.HTTPRequest) error {
	req.Method = http.MethodPost
	req.Path = "/"
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Body.Reset()

	w := &formWriter{buf: &req.Body}
	w.pair("Action", op.Name)
	w.pair("Version", meta.APIVersion)

	if err := w.structure("", op.Input, params); err != nil {
		return protocol.ValidationError(op, err)
	}

	return nil
}

type formWriter struct {
	buf *bytes.Buffer
}

func (w *formWriter) pair(key, value string) {
	if w.buf.Len() > 0 {
		w.buf.WriteByte('&')
	}

	w.buf.WriteString(url.QueryEscape(key))
	w.buf.WriteByte('=')
	w.buf.WriteString(url.QueryEscape(value))
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "." + name
}

func (w *formWriter) structure(prefix string, shape *svc.Shape, params map[string]any) error {
	if shape == nil || len(shape.Members) == 0 {
		for _, k := range protocol.SortedKeys(params) {
			if err := w.value(join(prefix, k), nil, params[k]); err != nil {
				return err
			}
		}

		return nil
	}

	for _, m := range shape.Members {
		v, ok := params[m.Name]
		if !ok || v == nil {
			continue
		}

		if err := w.value(join(prefix, m.WireName()), m, v); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}

	return nil
}

func (w *formWriter) value(name string, m *svc.Member, v any) error {
	if m == nil || m.Shape == nil {
		m = &svc.Member{Shape: guessShape(v)}
	}

	switch m.Shape.Type {
	case svc.TypeStructure:
		params, ok := protocol.ToMap(v)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
		}

		return w.structure(name, m.Shape, params)
	case svc.TypeList:
		items, ok := protocol.ToList(v)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
		}

		if len(items) == 0 {
			w.pair(name, "")

			return nil
		}

		base := name
		if !m.IsFlattened() {
			base = join(name, xmlutil.ItemName(m.Shape.Member, "member"))
		}

		for i, item := range items {
			if err := w.value(base+"."+strconv.Itoa(i+1), m.Shape.Member, item); err != nil {
				return err
			}
		}

		return nil
	case svc.TypeMap:
		entries, ok := protocol.ToMap(v)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
		}

		base := name
		if !m.IsFlattened() {
			base = join(name, "entry")
		}

		keyName := xmlutil.ItemName(m.Shape.Key, "key")
		valueName := xmlutil.ItemName(m.Shape.Value, "value")

		for i, k := range protocol.SortedKeys(entries) {
			entry := base + "." + strconv.Itoa(i+1)
			w.pair(entry+"."+keyName, k)

			if err := w.value(entry+"."+valueName, m.Shape.Value, entries[k]); err != nil {
				return err
			}
		}

		return nil
	default:
		s, err := protocol.FormatScalar(m.Shape, v, m.Format(svc.TimestampISO8601))
		if err != nil {
			return err
		}

		w.pair(name, s)

		return nil
	}
}

func guessShape(v any) *svc.Shape {
	if _, ok := protocol.ToMap(v); ok {
		return &svc.Shape{Type: svc.TypeStructure}
	}

	switch v.(type) {
	case string:
		return &svc.Shape{Type: svc.TypeString}
	case bool:
		return &svc.Shape{Type: svc.TypeBoolean}
	case float32, float64:
		return &svc.Shape{Type: svc.TypeDouble}
	case []byte:
		return &svc.Shape{Type: svc.TypeBlob}
	}

	if _, ok := protocol.ToList(v); ok {
		return &svc.Shape{Type: svc.TypeList}
	}

	if _, ok := protocol.ToTime(v); ok {
		return &svc.Shape{Type: svc.TypeTimestamp}
	}

	return &svc.Shape{Type: svc.TypeLong}
}

// Deserialize implements svc.Codec. Output members sit inside an
// <OperationResult> element of the response document.
func (c *Codec) Deserialize(op *svc.Operation, _ *svc.ServiceMetadata, resp *svc.HTTPResponse) (map[string]any, error) {
	if !protocol.Success(resp.StatusCode) {
		return nil, restxml.DecodeError(Name, op, resp)
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return map[string]any{}, nil
	}

	root, err := xmlutil.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, protocol.ParseError(Name, resp.StatusCode, err)
	}

	result := root.Child(op.Name + "Result")
	if result == nil {
		result = root
	}

	out, err := xmlutil.Structure(result, op.Output)
	if err != nil {
		return nil, protocol.ParseError(Name, resp.StatusCode, err)
	}

	return out, nil
}
