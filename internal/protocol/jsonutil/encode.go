// Package jsonutil encodes and decodes shape-directed JSON documents.
package jsonutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Encoder writes a JSON document token by token.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes params as a JSON object described by shape. Only members
// bound to the body are written.
func Encode(w io.Writer, shape *svc.Shape, params map[string]any) error {
	e := NewEncoder(w)
	e.structure(shape, params)

	return e.err
}

func (e *Encoder) write(s string) {
	if e.err != nil {
		return
	}

	_, e.err = io.WriteString(e.w, s)
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *Encoder) str(s string) {
	b, err := json.Marshal(s)
	if err != nil {
		e.fail(err)

		return
	}

	e.write(string(b))
}

func (e *Encoder) structure(shape *svc.Shape, params map[string]any) {
	if shape == nil || len(shape.Members) == 0 {
		e.generic(params)

		return
	}

	e.write("{")

	first := true

	for _, m := range shape.Members {
		if m.Location != svc.LocationBody {
			continue
		}

		v, ok := params[m.Name]
		if !ok || v == nil {
			continue
		}

		if !first {
			e.write(",")
		}

		first = false

		e.str(m.WireName())
		e.write(":")
		e.value(m, v)
	}

	e.write("}")
}

func (e *Encoder) value(m *svc.Member, v any) {
	shape := m.Shape
	if shape == nil {
		e.generic(v)

		return
	}

	switch shape.Type {
	case svc.TypeStructure:
		params, ok := protocol.ToMap(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))

			return
		}

		e.structure(shape, params)
	case svc.TypeList:
		items, ok := protocol.ToList(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))

			return
		}

		e.write("[")

		for i, item := range items {
			if i > 0 {
				e.write(",")
			}

			e.value(elementMember(shape.Member), item)
		}

		e.write("]")
	case svc.TypeMap:
		entries, ok := protocol.ToMap(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))

			return
		}

		e.write("{")

		for i, k := range protocol.SortedKeys(entries) {
			if i > 0 {
				e.write(",")
			}

			e.str(k)
			e.write(":")
			e.value(elementMember(shape.Value), entries[k])
		}

		e.write("}")
	case svc.TypeTimestamp:
		t, ok := protocol.ToTime(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))

			return
		}

		e.timestamp(t, m.Format(svc.TimestampUnix))
	case svc.TypeBlob:
		b, ok := protocol.ToBytes(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))

			return
		}

		e.str(base64.StdEncoding.EncodeToString(b))
	case svc.TypeFloat, svc.TypeDouble:
		f, ok := protocol.ToFloat64(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))

			return
		}

		e.float(f)
	default:
		s, err := protocol.FormatScalar(shape, v, svc.TimestampUnix)
		if err != nil {
			e.fail(fmt.Errorf("%s: %w", m.Name, err))

			return
		}

		if shape.Type == svc.TypeString {
			e.str(s)
		} else {
			e.write(s)
		}
	}
}

func (e *Encoder) timestamp(t time.Time, format svc.TimestampFormat) {
	s := protocol.FormatTimestamp(t, format)
	if format == svc.TimestampUnix {
		e.write(s)

		return
	}

	e.str(s)
}

func (e *Encoder) float(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		e.str(protocol.FormatFloat(f))

		return
	}

	e.write(strconv.FormatFloat(f, 'g', -1, 64))
}

// generic encodes values that have no shape by their Go type.
func (e *Encoder) generic(v any) {
	switch t := v.(type) {
	case nil:
		e.write("null")
	case string:
		e.str(t)
	case bool:
		e.write(strconv.FormatBool(t))
	case time.Time:
		e.timestamp(t, svc.TimestampUnix)
	case []byte:
		e.str(base64.StdEncoding.EncodeToString(t))
	case float32, float64:
		f, _ := protocol.ToFloat64(t)
		e.float(f)
	default:
		if i, ok := protocol.ToInt64(v); ok {
			e.write(strconv.FormatInt(i, 10))

			return
		}

		if m, ok := protocol.ToMap(v); ok {
			e.write("{")

			for i, k := range protocol.SortedKeys(m) {
				if i > 0 {
					e.write(",")
				}

				e.str(k)
				e.write(":")
				e.generic(m[k])
			}

			e.write("}")

			return
		}

		if l, ok := protocol.ToList(v); ok {
			e.write("[")

			for i, item := range l {
				if i > 0 {
					e.write(",")
				}

				e.generic(item)
			}

			e.write("]")

			return
		}

		e.fail(fmt.Errorf("%w: %T", protocol.ErrUnsupportedValue, v))
	}
}

func elementMember(m *svc.Member) *svc.Member {
	if m == nil {
		return &svc.Member{}
	}

	return m
}
