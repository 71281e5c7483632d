// Package xmlutil encodes and decodes shape-directed XML documents.
package xmlutil

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// ErrEmptyDocument is returned when a body has no root element.
var ErrEmptyDocument = errors.New("xml document has no root element")

// Node is one element of a parsed document.
type Node struct {
	Name     xml.Name
	Attr     []xml.Attr
	Text     string
	Children []*Node
}

// Parse reads a document into a tree and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var (
		root  *Node
		stack []*Node
		text  strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name, Attr: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}

			stack = append(stack, n)

			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}

			n := stack[len(stack)-1]
			if len(n.Children) == 0 {
				n.Text = text.String()
			}

			stack = stack[:len(stack)-1]

			text.Reset()
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}

	return root, nil
}

// Child returns the first child with local name, or nil.
func (n *Node) Child(local string) *Node {
	if n == nil {
		return nil
	}

	for _, c := range n.Children {
		if c.Name.Local == local {
			return c
		}
	}

	return nil
}

// ChildrenNamed returns every child with local name.
func (n *Node) ChildrenNamed(local string) []*Node {
	if n == nil {
		return nil
	}

	var out []*Node

	for _, c := range n.Children {
		if c.Name.Local == local {
			out = append(out, c)
		}
	}

	return out
}

// Find returns the first descendant, depth first, with local name.
func (n *Node) Find(local string) *Node {
	if n == nil {
		return nil
	}

	if n.Name.Local == local {
		return n
	}

	for _, c := range n.Children {
		if found := c.Find(local); found != nil {
			return found
		}
	}

	return nil
}

// Attribute returns the value of the attribute with local name.
func (n *Node) Attribute(local string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}

	return "", false
}

// ChildText returns the text of the first child with local name.
func (n *Node) ChildText(local string) string {
	if c := n.Child(local); c != nil {
		return c.Text
	}

	return ""
}
