package xmlutil

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Structure converts the children of node into a value map described by
// shape. Only members bound to the body are read.
func Structure(node *Node, shape *svc.Shape) (map[string]any, error) {
	out := map[string]any{}

	if node == nil {
		return out, nil
	}

	if shape == nil || len(shape.Members) == 0 {
		for _, c := range node.Children {
			out[c.Name.Local] = Generic(c)
		}

		return out, nil
	}

	for _, m := range shape.Members {
		if m.Location != svc.LocationBody {
			continue
		}

		v, ok, err := member(node, m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}

		if ok {
			out[m.Name] = v
		}
	}

	return out, nil
}

func member(parent *Node, m *svc.Member) (any, bool, error) {
	name := m.WireName()

	if m.XMLAttribute {
		s, ok := parent.Attribute(name)
		if !ok {
			return nil, false, nil
		}

		v, err := protocol.ParseScalar(m.Shape, s, m.Format(svc.TimestampISO8601))

		return v, err == nil, err
	}

	if m.Shape != nil && m.IsFlattened() {
		nodes := parent.ChildrenNamed(name)
		if len(nodes) == 0 {
			return nil, false, nil
		}

		switch m.Shape.Type {
		case svc.TypeList:
			v, err := listItems(nodes, m.Shape.Member)

			return v, err == nil, err
		case svc.TypeMap:
			v, err := mapEntries(nodes, m.Shape)

			return v, err == nil, err
		}
	}

	child := parent.Child(name)
	if child == nil {
		return nil, false, nil
	}

	v, err := Value(child, m)

	return v, err == nil, err
}

// Value converts element node for member m.
func Value(node *Node, m *svc.Member) (any, error) {
	if m == nil || m.Shape == nil {
		return Generic(node), nil
	}

	shape := m.Shape

	switch shape.Type {
	case svc.TypeStructure:
		return Structure(node, shape)
	case svc.TypeList:
		return listItems(node.Children, shape.Member)
	case svc.TypeMap:
		return mapEntries(node.ChildrenNamed("entry"), shape)
	case svc.TypeString:
		return node.Text, nil
	default:
		return protocol.ParseScalar(shape, node.Text, m.Format(svc.TimestampISO8601))
	}
}

func listItems(nodes []*Node, element *svc.Member) ([]any, error) {
	out := make([]any, 0, len(nodes))

	for _, n := range nodes {
		v, err := Value(n, element)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, nil
}

func mapEntries(entries []*Node, shape *svc.Shape) (map[string]any, error) {
	keyName := ItemName(shape.Key, "key")
	valueName := ItemName(shape.Value, "value")
	out := make(map[string]any, len(entries))

	for _, entry := range entries {
		key := entry.ChildText(keyName)

		valueNode := entry.Child(valueName)
		if valueNode == nil {
			out[key] = nil

			continue
		}

		v, err := Value(valueNode, shape.Value)
		if err != nil {
			return nil, err
		}

		out[key] = v
	}

	return out, nil
}

// Generic converts an element with no shape: leaves become their text and
// elements with children become maps.
func Generic(node *Node) any {
	if len(node.Children) == 0 {
		return strings.TrimSpace(node.Text)
	}

	out := make(map[string]any, len(node.Children))
	for _, c := range node.Children {
		out[c.Name.Local] = Generic(c)
	}

	return out
}
