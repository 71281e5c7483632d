// Package protocoltest provides shapes, parameters and loopback helpers for
// codec tests.
package protocoltest

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Created is the timestamp used by the fixtures.
var Created = time.Date(2024, time.March, 9, 16, 30, 5, 0, time.UTC)

func scalar(t svc.ShapeType) *svc.Shape {
	return &svc.Shape{Type: t}
}

// AllTypesShape returns a structure exercising every value type.
func AllTypesShape() *svc.Shape {
	item := &svc.Shape{
		Name: "Item",
		Type: svc.TypeStructure,
		Members: []*svc.Member{
			{Name: "Key", Shape: scalar(svc.TypeString)},
			{Name: "Value", Shape: scalar(svc.TypeLong)},
		},
	}

	nested := &svc.Shape{
		Name: "Nested",
		Type: svc.TypeStructure,
		Members: []*svc.Member{
			{Name: "Label", Shape: scalar(svc.TypeString)},
			{Name: "Items", Shape: &svc.Shape{Type: svc.TypeList, Member: &svc.Member{Shape: item}}},
		},
	}

	return &svc.Shape{
		Name: "AllTypes",
		Type: svc.TypeStructure,
		Members: []*svc.Member{
			{Name: "Name", Shape: scalar(svc.TypeString), Required: true},
			{Name: "Count", Shape: scalar(svc.TypeInteger)},
			{Name: "Size", Shape: scalar(svc.TypeLong)},
			{Name: "Ratio", Shape: scalar(svc.TypeDouble)},
			{Name: "Enabled", Shape: scalar(svc.TypeBoolean)},
			{Name: "Created", Shape: scalar(svc.TypeTimestamp)},
			{Name: "Expires", Shape: scalar(svc.TypeTimestamp), TimestampFormat: svc.TimestampRFC822},
			{Name: "Data", Shape: scalar(svc.TypeBlob)},
			{Name: "Tags", Shape: &svc.Shape{Type: svc.TypeList, Member: &svc.Member{Shape: scalar(svc.TypeString)}}},
			{Name: "Flat", Shape: &svc.Shape{Type: svc.TypeList, Flattened: true, Member: &svc.Member{Shape: scalar(svc.TypeInteger)}}},
			{Name: "Nested", Shape: nested},
			{Name: "Attributes", Shape: &svc.Shape{
				Type:  svc.TypeMap,
				Key:   &svc.Member{Shape: scalar(svc.TypeString)},
				Value: &svc.Member{Shape: scalar(svc.TypeString)},
			}},
		},
	}
}

// AllTypesParams returns values for AllTypesShape using the Go types the
// decoders produce.
func AllTypesParams() map[string]any {
	return map[string]any{
		"Name":    "widget & co",
		"Count":   int64(42),
		"Size":    int64(9007199254740993),
		"Ratio":   2.5,
		"Enabled": true,
		"Created": Created,
		"Expires": Created.Add(time.Hour),
		"Data":    []byte("binary\x00data"),
		"Tags":    []any{"red", "green"},
		"Flat":    []any{int64(1), int64(2), int64(3)},
		"Nested": map[string]any{
			"Label": "outer",
			"Items": []any{
				map[string]any{"Key": "a", "Value": int64(1)},
				map[string]any{"Key": "b", "Value": int64(2)},
			},
		},
		"Attributes": map[string]any{"color": "blue", "size": "L"},
	}
}

// Operation returns an operation whose input and output are both shape.
func Operation(name string, shape *svc.Shape) *svc.Operation {
	return &svc.Operation{
		Name:   name,
		HTTP:   svc.HTTPBinding{Method: "POST", RequestURI: "/"},
		Input:  shape,
		Output: shape,
		Errors: []string{"ResourceNotFoundException"},
	}
}

type formNode struct {
	name     string
	children []*formNode
	index    map[string]*formNode
	text     string
}

func (n *formNode) child(key string, name string) *formNode {
	if n.index == nil {
		n.index = map[string]*formNode{}
	}

	if c, ok := n.index[key]; ok {
		return c
	}

	c := &formNode{name: name}
	n.index[key] = c
	n.children = append(n.children, c)

	return c
}

// FormToXML turns a Query request body into the XML response a service
// would return for the same values, wrapped in <{op}Response><{op}Result>.
// A numeric path segment selects an instance of the element before it, so
// "Tags.member.2" and flattened "Flat.2" become repeated elements.
func FormToXML(op string, form []byte) ([]byte, error) {
	values, err := url.ParseQuery(string(form))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "Action" && k != "Version" {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return lessPath(keys[i], keys[j]) })

	root := &formNode{}

	for _, k := range keys {
		parts := strings.Split(k, ".")
		cur := root
		path := ""

		for i := 0; i < len(parts); i++ {
			name := parts[i]
			key := name

			if i+1 < len(parts) {
				if _, err := strconv.Atoi(parts[i+1]); err == nil {
					key = name + "." + parts[i+1]
					i++
				}
			}

			path += "/" + key
			cur = cur.child(path, name)
		}

		cur.text = values.Get(k)
	}

	var buf bytes.Buffer

	enc := xml.NewEncoder(&buf)
	resp := xml.StartElement{Name: xml.Name{Local: op + "Response"}}
	result := xml.StartElement{Name: xml.Name{Local: op + "Result"}}

	if err := enc.EncodeToken(resp); err != nil {
		return nil, err
	}

	if err := enc.EncodeToken(result); err != nil {
		return nil, err
	}

	for _, c := range root.children {
		if err := writeNode(enc, c); err != nil {
			return nil, err
		}
	}

	if err := enc.EncodeToken(result.End()); err != nil {
		return nil, err
	}

	if err := enc.EncodeToken(resp.End()); err != nil {
		return nil, err
	}

	if err := enc.Flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeNode(enc *xml.Encoder, n *formNode) error {
	start := xml.StartElement{Name: xml.Name{Local: n.name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	if len(n.children) == 0 {
		if err := enc.EncodeToken(xml.CharData(n.text)); err != nil {
			return err
		}
	}

	for _, c := range n.children {
		if err := writeNode(enc, c); err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}

// lessPath orders form keys so numeric segments sort numerically.
func lessPath(a, b string) bool {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")

	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] == pb[i] {
			continue
		}

		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])

		if errA == nil && errB == nil {
			return na < nb
		}

		return pa[i] < pb[i]
	}

	return len(pa) < len(pb)
}
