package xmlutil

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Encoder writes shape-directed XML through xml.Encoder tokens, so the
// document is never held in memory as a tree.
type Encoder struct {
	enc *xml.Encoder
	err error
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: xml.NewEncoder(w)}
}

// EncodeDocument writes params as a single root element. Only members bound
// to the body are written.
func EncodeDocument(w io.Writer, root, namespace string, shape *svc.Shape, params map[string]any) error {
	e := NewEncoder(w)
	e.Structure(root, namespace, shape, params)

	return e.Flush()
}

// Flush writes buffered tokens and returns the first error seen.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}

	return e.enc.Flush()
}

func (e *Encoder) token(t xml.Token) {
	if e.err != nil {
		return
	}

	e.err = e.enc.EncodeToken(t)
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Structure writes one element holding the body members of shape.
func (e *Encoder) Structure(name, namespace string, shape *svc.Shape, params map[string]any) {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if namespace != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: namespace})
	}

	if shape != nil {
		for _, m := range shape.Members {
			v, ok := params[m.Name]
			if !ok || v == nil || !m.XMLAttribute {
				continue
			}

			s, err := protocol.FormatScalar(m.Shape, v, m.Format(svc.TimestampISO8601))
			if err != nil {
				e.fail(fmt.Errorf("%s: %w", m.Name, err))

				return
			}

			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: m.WireName()}, Value: s})
		}
	}

	e.token(start)

	if shape == nil || len(shape.Members) == 0 {
		for _, k := range protocol.SortedKeys(params) {
			e.generic(k, params[k])
		}
	} else {
		for _, m := range shape.Members {
			if m.Location != svc.LocationBody || m.XMLAttribute {
				continue
			}

			v, ok := params[m.Name]
			if !ok || v == nil {
				continue
			}

			e.Member(m.WireName(), m, v)
		}
	}

	e.token(start.End())
}

// Member writes v as the element name according to m.
func (e *Encoder) Member(name string, m *svc.Member, v any) {
	shape := m.Shape
	if shape == nil {
		e.generic(name, v)

		return
	}

	switch shape.Type {
	case svc.TypeStructure:
		params, ok := protocol.ToMap(v)
		if !ok {
			e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, name, v))

			return
		}

		ns := m.XMLNamespace
		if ns == "" {
			ns = shape.XMLNamespace
		}

		e.Structure(name, ns, shape, params)
	case svc.TypeList:
		e.list(name, m, v)
	case svc.TypeMap:
		e.mapEntries(name, m, v)
	default:
		s, err := protocol.FormatScalar(shape, v, m.Format(svc.TimestampISO8601))
		if err != nil {
			e.fail(fmt.Errorf("%s: %w", name, err))

			return
		}

		e.text(name, s)
	}
}

func (e *Encoder) list(name string, m *svc.Member, v any) {
	items, ok := protocol.ToList(v)
	if !ok {
		e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, name, v))

		return
	}

	element := elementOf(m.Shape.Member)

	if m.IsFlattened() {
		for _, item := range items {
			e.Member(name, element, item)
		}

		return
	}

	start := xml.StartElement{Name: xml.Name{Local: name}}
	e.token(start)

	itemName := ItemName(m.Shape.Member, "member")
	for _, item := range items {
		e.Member(itemName, element, item)
	}

	e.token(start.End())
}

func (e *Encoder) mapEntries(name string, m *svc.Member, v any) {
	entries, ok := protocol.ToMap(v)
	if !ok {
		e.fail(fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, name, v))

		return
	}

	keyName := ItemName(m.Shape.Key, "key")
	valueName := ItemName(m.Shape.Value, "value")
	keyMember := elementOf(m.Shape.Key)
	valueMember := elementOf(m.Shape.Value)

	entryName := "entry"

	if m.IsFlattened() {
		entryName = name
	} else {
		e.token(xml.StartElement{Name: xml.Name{Local: name}})
	}

	for _, k := range protocol.SortedKeys(entries) {
		entry := xml.StartElement{Name: xml.Name{Local: entryName}}
		e.token(entry)
		e.Member(keyName, keyMember, k)
		e.Member(valueName, valueMember, entries[k])
		e.token(entry.End())
	}

	if !m.IsFlattened() {
		e.token(xml.EndElement{Name: xml.Name{Local: name}})
	}
}

func (e *Encoder) text(name, s string) {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	e.token(start)
	e.token(xml.CharData(s))
	e.token(start.End())
}

func (e *Encoder) generic(name string, v any) {
	if m, ok := v.(map[string]any); ok {
		e.Structure(name, "", nil, m)

		return
	}

	if l, ok := protocol.ToList(v); ok {
		for _, item := range l {
			e.generic(name, item)
		}

		return
	}

	s, err := protocol.FormatScalar(genericShape(v), v, svc.TimestampISO8601)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", name, err))

		return
	}

	e.text(name, s)
}

func genericShape(v any) *svc.Shape {
	switch v.(type) {
	case bool:
		return &svc.Shape{Type: svc.TypeBoolean}
	case float32, float64:
		return &svc.Shape{Type: svc.TypeDouble}
	case []byte:
		return &svc.Shape{Type: svc.TypeBlob}
	case string:
		return &svc.Shape{Type: svc.TypeString}
	}

	if _, ok := protocol.ToTime(v); ok {
		return &svc.Shape{Type: svc.TypeTimestamp}
	}

	return &svc.Shape{Type: svc.TypeLong}
}

// ItemName is the element name of a list item or map key/value.
func ItemName(m *svc.Member, def string) string {
	if m == nil {
		return def
	}

	if m.LocationName != "" {
		return m.LocationName
	}

	if m.Shape != nil && m.Shape.LocationName != "" {
		return m.Shape.LocationName
	}

	return def
}

func elementOf(m *svc.Member) *svc.Member {
	if m == nil {
		return &svc.Member{Shape: &svc.Shape{Type: svc.TypeString}}
	}

	return m
}
