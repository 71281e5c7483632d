package svc

import (
	"fmt"
	"slices"
	"sort"
)

// ShapeType is the wire type of a shape.
type ShapeType string

const (
	TypeStructure ShapeType = "structure"
	TypeList      ShapeType = "list"
	TypeMap       ShapeType = "map"
	TypeString    ShapeType = "string"
	TypeInteger   ShapeType = "integer"
	TypeLong      ShapeType = "long"
	TypeFloat     ShapeType = "float"
	TypeDouble    ShapeType = "double"
	TypeBoolean   ShapeType = "boolean"
	TypeTimestamp ShapeType = "timestamp"
	TypeBlob      ShapeType = "blob"
)

// Location says where a member travels in the HTTP envelope.
type Location string

const (
	LocationBody       Location = ""
	LocationURI        Location = "uri"
	LocationQuery      Location = "querystring"
	LocationHeader     Location = "header"
	LocationHeaders    Location = "headers"
	LocationStatusCode Location = "statusCode"
)

// TimestampFormat is the wire representation of a timestamp.
type TimestampFormat string

const (
	TimestampDefault TimestampFormat = ""
	TimestampISO8601 TimestampFormat = "iso8601"
	TimestampUnix    TimestampFormat = "unixTimestamp"
	TimestampRFC822  TimestampFormat = "rfc822"
)

// Shape describes the structure of a value.
type Shape struct {
	Name            string
	Type            ShapeType
	Members         []*Member
	Member          *Member
	Key             *Member
	Value           *Member
	Flattened       bool
	TimestampFormat TimestampFormat
	LocationName    string
	XMLNamespace    string
	// Payload names the member sent as the whole body by REST protocols.
	Payload string
	// Streaming marks a blob payload read from an io.ReadSeeker.
	Streaming bool
}

// MemberByName returns the named member of a structure shape or nil.
func (s *Shape) MemberByName(name string) *Member {
	if s == nil {
		return nil
	}

	for _, m := range s.Members {
		if m.Name == name {
			return m
		}
	}

	return nil
}

// PayloadMember returns the member bound to the whole body, if any.
func (s *Shape) PayloadMember() *Member {
	if s == nil || s.Payload == "" {
		return nil
	}

	return s.MemberByName(s.Payload)
}

// Member is one named field of a structure, or the element/key/value of a
// list or map shape.
type Member struct {
	Name            string
	Shape           *Shape
	Location        Location
	LocationName    string
	Required        bool
	TimestampFormat TimestampFormat
	XMLAttribute    bool
	XMLNamespace    string
	Flattened       bool
}

// WireName is the name a member is serialized under.
func (m *Member) WireName() string {
	if m.LocationName != "" {
		return m.LocationName
	}

	if m.Shape != nil && m.Shape.LocationName != "" {
		return m.Shape.LocationName
	}

	return m.Name
}

// IsFlattened reports whether a list or map member is serialized without
// a wrapping element.
func (m *Member) IsFlattened() bool {
	return m.Flattened || (m.Shape != nil && m.Shape.Flattened)
}

// Format returns the member timestamp format, falling back to the shape's
// format and then to def.
func (m *Member) Format(def TimestampFormat) TimestampFormat {
	if m.TimestampFormat != TimestampDefault {
		return m.TimestampFormat
	}

	if m.Shape != nil && m.Shape.TimestampFormat != TimestampDefault {
		return m.Shape.TimestampFormat
	}

	return def
}

// HTTPBinding is the HTTP method and request URI template of an operation.
type HTTPBinding struct {
	Method       string
	RequestURI   string
	ResponseCode int
}

// PaginationDescriptor describes how an operation pages its results.
type PaginationDescriptor struct {
	InputTokens  []string
	OutputTokens []string
	ResultKeys   []string
	LimitKey     string
	MoreResults  string
}

// Operation is the immutable description of one remote call.
type Operation struct {
	Name      string
	HTTP      HTTPBinding
	Input     *Shape
	Output    *Shape
	Errors    []string
	Paginator *PaginationDescriptor
}

// DeclaresError reports whether code is one of the operation's declared errors.
func (o *Operation) DeclaresError(code string) bool {
	return slices.Contains(o.Errors, code)
}

// Pageable reports whether the operation has a pagination descriptor.
func (o *Operation) Pageable() bool {
	return o.Paginator != nil && len(o.Paginator.InputTokens) > 0 && len(o.Paginator.OutputTokens) > 0
}

// Protocol identifies a wire protocol family.
type Protocol string

const (
	ProtocolJSONRPC  Protocol = "json"
	ProtocolQuery    Protocol = "query"
	ProtocolRESTJSON Protocol = "rest-json"
	ProtocolRESTXML  Protocol = "rest-xml"
)

// ServiceMetadata is the service-wide part of an API description.
type ServiceMetadata struct {
	ServiceID        string
	EndpointPrefix   string
	SigningName      string
	APIVersion       string
	Protocol         Protocol
	SignatureVersion string
	JSONVersion      string
	TargetPrefix     string
	XMLNamespace     string
	GlobalEndpoint   string
}

// SigningService returns the service name used in signatures.
func (m *ServiceMetadata) SigningService() string {
	if m.SigningName != "" {
		return m.SigningName
	}

	return m.EndpointPrefix
}

// API is a versioned service description: metadata plus operations.
type API struct {
	Metadata   ServiceMetadata
	Operations map[string]*Operation
}

// Operation looks up an operation by name.
func (a *API) Operation(name string) (*Operation, error) {
	op, ok := a.Operations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, a.Metadata.ServiceID, name)
	}

	return op, nil
}

// OperationNames returns the sorted operation names.
func (a *API) OperationNames() []string {
	names := make([]string, 0, len(a.Operations))
	for name := range a.Operations {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
