// Package rest binds members to the URI, query string, headers and status
// code of REST-style requests and responses.
package rest

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// BuildLocations writes every non-body member of params into req and sets
// the method and path from the operation's HTTP binding.
func BuildLocations(op *svc.Operation, params map[string]any, req *svc.HTTPRequest) error {
	if op.HTTP.Method != "" {
		req.Method = op.HTTP.Method
	}

	uri := op.HTTP.RequestURI
	if uri == "" {
		uri = "/"
	}

	path, rawQuery, _ := strings.Cut(uri, "?")

	if rawQuery != "" {
		literal, err := url.ParseQuery(rawQuery)
		if err != nil {
			return protocol.ValidationError(op, err)
		}

		for k, vs := range literal {
			req.Query[k] = append(req.Query[k], vs...)
		}
	}

	shape := op.Input
	if shape == nil {
		req.Path = path

		return nil
	}

	expanded, err := expandURI(path, shape, params)
	if err != nil {
		return protocol.ValidationError(op, err)
	}

	req.Path = expanded

	for _, m := range shape.Members {
		v, ok := params[m.Name]
		if !ok || v == nil {
			continue
		}

		var err error

		switch m.Location {
		case svc.LocationQuery:
			err = buildQuery(m, v, req.Query)
		case svc.LocationHeader:
			err = buildHeader(m, v, req.Header)
		case svc.LocationHeaders:
			err = buildHeaders(m, v, req.Header)
		}

		if err != nil {
			return protocol.ValidationError(op, fmt.Errorf("%s: %w", m.Name, err))
		}
	}

	return nil
}

func expandURI(path string, shape *svc.Shape, params map[string]any) (string, error) {
	var b strings.Builder

	for {
		start := strings.Index(path, "{")
		if start < 0 {
			b.WriteString(path)

			break
		}

		end := strings.Index(path[start:], "}")
		if end < 0 {
			b.WriteString(path)

			break
		}

		end += start
		b.WriteString(path[:start])

		name := path[start+1 : end]
		greedy := strings.HasSuffix(name, "+")
		name = strings.TrimSuffix(name, "+")

		m := uriMember(shape, name)
		if m == nil {
			return "", fmt.Errorf("%w: %s", protocol.ErrMissingURIParam, name)
		}

		v, ok := params[m.Name]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: %s", protocol.ErrMissingURIParam, name)
		}

		s, err := protocol.FormatScalar(m.Shape, v, m.Format(svc.TimestampISO8601))
		if err != nil {
			return "", fmt.Errorf("%s: %w", m.Name, err)
		}

		b.WriteString(EscapePath(s, greedy))

		path = path[end+1:]
	}

	return b.String(), nil
}

func uriMember(shape *svc.Shape, name string) *svc.Member {
	for _, m := range shape.Members {
		if m.Location == svc.LocationURI && m.WireName() == name {
			return m
		}
	}

	return nil
}

// EscapePath percent-encodes everything but unreserved characters. Greedy
// labels keep their slashes.
func EscapePath(s string, greedy bool) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) || (greedy && c == '/') {
			b.WriteByte(c)

			continue
		}

		fmt.Fprintf(&b, "%%%02X", c)
	}

	return b.String()
}

func unreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func buildQuery(m *svc.Member, v any, query url.Values) error {
	name := m.WireName()

	switch {
	case m.Shape != nil && m.Shape.Type == svc.TypeList:
		items, ok := protocol.ToList(v)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
		}

		for _, item := range items {
			s, err := protocol.FormatScalar(elementShape(m.Shape.Member), item, svc.TimestampISO8601)
			if err != nil {
				return err
			}

			query.Add(name, s)
		}
	case m.Shape != nil && m.Shape.Type == svc.TypeMap:
		entries, ok := protocol.ToMap(v)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
		}

		for _, k := range protocol.SortedKeys(entries) {
			if items, isList := protocol.ToList(entries[k]); isList {
				for _, item := range items {
					query.Add(k, fmt.Sprint(item))
				}

				continue
			}

			query.Set(k, fmt.Sprint(entries[k]))
		}
	default:
		s, err := protocol.FormatScalar(m.Shape, v, m.Format(svc.TimestampISO8601))
		if err != nil {
			return err
		}

		query.Set(name, s)
	}

	return nil
}

func buildHeader(m *svc.Member, v any, header http.Header) error {
	if m.Shape != nil && m.Shape.Type == svc.TypeList {
		items, ok := protocol.ToList(v)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
		}

		parts := make([]string, 0, len(items))

		for _, item := range items {
			s, err := protocol.FormatScalar(elementShape(m.Shape.Member), item, svc.TimestampRFC822)
			if err != nil {
				return err
			}

			parts = append(parts, s)
		}

		header.Set(m.WireName(), strings.Join(parts, ","))

		return nil
	}

	s, err := protocol.FormatScalar(m.Shape, v, m.Format(svc.TimestampRFC822))
	if err != nil {
		return err
	}

	header.Set(m.WireName(), s)

	return nil
}

func buildHeaders(m *svc.Member, v any, header http.Header) error {
	entries, ok := protocol.ToMap(v)
	if !ok {
		return fmt.Errorf("%w: got %T", protocol.ErrUnsupportedValue, v)
	}

	prefix := m.LocationName

	for _, k := range protocol.SortedKeys(entries) {
		s, ok := entries[k].(string)
		if !ok {
			return fmt.Errorf("%w: header %s got %T", protocol.ErrUnsupportedValue, k, entries[k])
		}

		header.Set(prefix+k, s)
	}

	return nil
}

// ExtractLocations reads header, prefixed-header and status code members
// of the output shape from resp into out.
func ExtractLocations(shape *svc.Shape, resp *svc.HTTPResponse, out map[string]any) error {
	if shape == nil {
		return nil
	}

	for _, m := range shape.Members {
		switch m.Location {
		case svc.LocationStatusCode:
			out[m.Name] = int64(resp.StatusCode)
		case svc.LocationHeader:
			raw := resp.Header.Get(m.WireName())
			if raw == "" {
				continue
			}

			v, err := parseHeader(m, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", m.Name, err)
			}

			out[m.Name] = v
		case svc.LocationHeaders:
			prefix := strings.ToLower(m.LocationName)
			values := map[string]any{}

			for k := range resp.Header {
				if strings.HasPrefix(strings.ToLower(k), prefix) {
					values[k[len(prefix):]] = resp.Header.Get(k)
				}
			}

			if len(values) > 0 {
				out[m.Name] = values
			}
		}
	}

	return nil
}

func parseHeader(m *svc.Member, raw string) (any, error) {
	if m.Shape != nil && m.Shape.Type == svc.TypeList {
		parts := strings.Split(raw, ",")
		items := make([]any, 0, len(parts))

		for _, p := range parts {
			v, err := protocol.ParseScalar(elementShape(m.Shape.Member), strings.TrimSpace(p), svc.TimestampRFC822)
			if err != nil {
				return nil, err
			}

			items = append(items, v)
		}

		return items, nil
	}

	return protocol.ParseScalar(m.Shape, raw, m.Format(svc.TimestampRFC822))
}

// BuildPayload handles a payload member bound to the whole body. It reports
// whether the operation has one, and writes raw blob and string payloads
// (including streams) itself; structure payloads are left to the caller.
func BuildPayload(op *svc.Operation, params map[string]any, req *svc.HTTPRequest) (*svc.Member, bool, error) {
	m := op.Input.PayloadMember()
	if m == nil {
		return nil, false, nil
	}

	v, ok := params[m.Name]
	if !ok || v == nil || m.Shape == nil || m.Shape.Type == svc.TypeStructure {
		return m, true, nil
	}

	if stream, ok := v.(io.ReadSeeker); ok {
		size, err := stream.Seek(0, io.SeekEnd)
		if err != nil {
			return m, true, protocol.ValidationError(op, err)
		}

		if _, err := stream.Seek(0, io.SeekStart); err != nil {
			return m, true, protocol.ValidationError(op, err)
		}

		req.Stream = stream
		req.StreamLength = size
		req.Header.Set("Content-Length", strconv.FormatInt(size, 10))

		return m, true, nil
	}

	b, ok := protocol.ToBytes(v)
	if !ok {
		return m, true, protocol.ValidationError(op, fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))
	}

	req.Body.Write(b)

	return m, true, nil
}

// StructurePayload returns the value of a structure payload member. It
// reports false when the member is absent, and fails when the value is not
// a structure.
func StructurePayload(op *svc.Operation, m *svc.Member, params map[string]any) (map[string]any, bool, error) {
	v, ok := params[m.Name]
	if !ok || v == nil {
		return nil, false, nil
	}

	obj, ok := protocol.ToMap(v)
	if !ok {
		return nil, false, protocol.ValidationError(op, fmt.Errorf("%w: %s got %T", protocol.ErrUnsupportedValue, m.Name, v))
	}

	return obj, true, nil
}

// ExtractPayload reads a raw blob or string payload member. It reports
// whether the output has a payload member; structure payloads are left to
// the caller.
func ExtractPayload(shape *svc.Shape, resp *svc.HTTPResponse, out map[string]any) (*svc.Member, bool) {
	m := shape.PayloadMember()
	if m == nil {
		return nil, false
	}

	if m.Shape != nil && m.Shape.Type != svc.TypeStructure {
		if m.Shape.Type == svc.TypeString {
			out[m.Name] = string(resp.Body)
		} else {
			out[m.Name] = append([]byte(nil), resp.Body...)
		}
	}

	return m, true
}

// HasBodyMembers reports whether shape has a member bound to the body.
func HasBodyMembers(shape *svc.Shape, params map[string]any) bool {
	if shape == nil {
		return false
	}

	for _, m := range shape.Members {
		if m.Location != svc.LocationBody {
			continue
		}

		if params == nil {
			return true
		}

		if v, ok := params[m.Name]; ok && v != nil {
			return true
		}
	}

	return false
}

func elementShape(m *svc.Member) *svc.Shape {
	if m == nil || m.Shape == nil {
		return &svc.Shape{Type: svc.TypeString}
	}

	return m.Shape
}
