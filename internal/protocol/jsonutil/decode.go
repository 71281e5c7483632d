package jsonutil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// ErrTrailingData is returned when a body holds more than one document.
var ErrTrailingData = errors.New("unexpected data after JSON document")

// Parse reads one JSON document, keeping numbers exact.
func Parse(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}

	return doc, nil
}

// Decode parses body into a value map described by shape. An empty body
// decodes to an empty map.
func Decode(shape *svc.Shape, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	doc, err := Parse(body)
	if err != nil {
		return nil, err
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", protocol.ErrUnsupportedValue, doc)
	}

	return Structure(shape, obj)
}

// Structure converts a parsed JSON object into a value map.
func Structure(shape *svc.Shape, obj map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(obj))

	if shape == nil || len(shape.Members) == 0 {
		for k, v := range obj {
			out[k] = Generic(v)
		}

		return out, nil
	}

	for _, m := range shape.Members {
		if m.Location != svc.LocationBody {
			continue
		}

		raw, ok := obj[m.WireName()]
		if !ok || raw == nil {
			continue
		}

		v, err := Value(m, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}

		out[m.Name] = v
	}

	return out, nil
}

// Value converts one parsed JSON value for member m.
func Value(m *svc.Member, raw any) (any, error) {
	if m == nil || m.Shape == nil {
		return Generic(raw), nil
	}

	shape := m.Shape

	switch shape.Type {
	case svc.TypeStructure:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		return Structure(shape, obj)
	case svc.TypeList:
		arr, ok := raw.([]any)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		out := make([]any, 0, len(arr))

		for _, item := range arr {
			if item == nil {
				out = append(out, nil)

				continue
			}

			v, err := Value(shape.Member, item)
			if err != nil {
				return nil, err
			}

			out = append(out, v)
		}

		return out, nil
	case svc.TypeMap:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		out := make(map[string]any, len(obj))

		for k, item := range obj {
			v, err := Value(shape.Value, item)
			if err != nil {
				return nil, err
			}

			out[k] = v
		}

		return out, nil
	case svc.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		return s, nil
	case svc.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		return b, nil
	case svc.TypeInteger, svc.TypeLong:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		return n.Int64()
	case svc.TypeFloat, svc.TypeDouble:
		switch v := raw.(type) {
		case json.Number:
			return v.Float64()
		case string:
			return protocol.ParseScalar(shape, v, svc.TimestampDefault)
		}

		return nil, mismatch(shape, raw)
	case svc.TypeTimestamp:
		switch v := raw.(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, err
			}

			return protocol.UnixTime(f), nil
		case string:
			return protocol.ParseTimestamp(v, m.Format(svc.TimestampUnix))
		}

		return nil, mismatch(shape, raw)
	case svc.TypeBlob:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(shape, raw)
		}

		return base64.StdEncoding.DecodeString(s)
	}

	return Generic(raw), nil
}

// Generic converts a parsed value with no shape: integral numbers become
// int64, other numbers float64.
func Generic(raw any) any {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}

		f, err := v.Float64()
		if err != nil {
			return math.NaN()
		}

		return f
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Generic(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Generic(item)
		}

		return out
	default:
		return v
	}
}

func mismatch(shape *svc.Shape, raw any) error {
	return fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, shape.Type, raw)
}
