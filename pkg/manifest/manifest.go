// Package manifest loads service API descriptions from YAML documents.
//
// A manifest has three sections: metadata, operations and shapes. Shapes
// reference each other by name and may be recursive; structure members keep
// the order in which they appear in the document.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"gopkg.in/yaml.v3"
)

// Static errors for manifest problems.
var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrUnknownShape    = errors.New("unknown shape")
	ErrDuplicateAPI    = errors.New("duplicate service")
)

type document struct {
	Metadata   metadataDoc             `yaml:"metadata"`
	Operations map[string]operationDoc `yaml:"operations"`
	Shapes     map[string]shapeDoc     `yaml:"shapes"`
}

type metadataDoc struct {
	ServiceID        string `yaml:"serviceId"`
	EndpointPrefix   string `yaml:"endpointPrefix"`
	SigningName      string `yaml:"signingName"`
	APIVersion       string `yaml:"apiVersion"`
	Protocol         string `yaml:"protocol"`
	SignatureVersion string `yaml:"signatureVersion"`
	JSONVersion      string `yaml:"jsonVersion"`
	TargetPrefix     string `yaml:"targetPrefix"`
	XMLNamespace     string `yaml:"xmlNamespace"`
	GlobalEndpoint   string `yaml:"globalEndpoint"`
}

type operationDoc struct {
	HTTP struct {
		Method       string `yaml:"method"`
		RequestURI   string `yaml:"requestUri"`
		ResponseCode int    `yaml:"responseCode"`
	} `yaml:"http"`
	Input     string        `yaml:"input"`
	Output    string        `yaml:"output"`
	Errors    []string      `yaml:"errors"`
	Paginator *paginatorDoc `yaml:"paginator"`
}

type paginatorDoc struct {
	InputToken  stringList `yaml:"inputToken"`
	OutputToken stringList `yaml:"outputToken"`
	ResultKey   stringList `yaml:"resultKey"`
	LimitKey    string     `yaml:"limitKey"`
	MoreResults string     `yaml:"moreResults"`
}

type shapeDoc struct {
	Type            string     `yaml:"type"`
	Members         yaml.Node  `yaml:"members"`
	Required        []string   `yaml:"required"`
	Member          *memberDoc `yaml:"member"`
	Key             *memberDoc `yaml:"key"`
	Value           *memberDoc `yaml:"value"`
	Flattened       bool       `yaml:"flattened"`
	TimestampFormat string     `yaml:"timestampFormat"`
	LocationName    string     `yaml:"locationName"`
	XMLNamespace    string     `yaml:"xmlNamespace"`
	Payload         string     `yaml:"payload"`
	Streaming       bool       `yaml:"streaming"`
}

type memberDoc struct {
	Shape           string `yaml:"shape"`
	Location        string `yaml:"location"`
	LocationName    string `yaml:"locationName"`
	TimestampFormat string `yaml:"timestampFormat"`
	XMLAttribute    bool   `yaml:"xmlAttribute"`
	XMLNamespace    string `yaml:"xmlNamespace"`
	Flattened       bool   `yaml:"flattened"`
}

// stringList accepts either a scalar or a sequence.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = stringList{node.Value}

		return nil
	}

	var values []string
	if err := node.Decode(&values); err != nil {
		return err
	}

	*l = values

	return nil
}

var shapeTypes = map[string]svc.ShapeType{
	string(svc.TypeStructure): svc.TypeStructure,
	string(svc.TypeList):      svc.TypeList,
	string(svc.TypeMap):       svc.TypeMap,
	string(svc.TypeString):    svc.TypeString,
	string(svc.TypeInteger):   svc.TypeInteger,
	string(svc.TypeLong):      svc.TypeLong,
	string(svc.TypeFloat):     svc.TypeFloat,
	string(svc.TypeDouble):    svc.TypeDouble,
	string(svc.TypeBoolean):   svc.TypeBoolean,
	string(svc.TypeTimestamp): svc.TypeTimestamp,
	string(svc.TypeBlob):      svc.TypeBlob,
}

// Parse decodes one manifest.
func Parse(data []byte) (*svc.API, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if doc.Metadata.ServiceID == "" {
		return nil, fmt.Errorf("%w: metadata.serviceId is required", ErrInvalidManifest)
	}

	r := &resolver{docs: doc.Shapes, shapes: make(map[string]*svc.Shape, len(doc.Shapes))}

	names := make([]string, 0, len(doc.Shapes))
	for name := range doc.Shapes {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if _, err := r.shape(name); err != nil {
			return nil, err
		}
	}

	api := &svc.API{
		Metadata:   doc.Metadata.toMetadata(),
		Operations: make(map[string]*svc.Operation, len(doc.Operations)),
	}

	for name, od := range doc.Operations {
		op, err := r.operation(name, od)
		if err != nil {
			return nil, err
		}

		api.Operations[name] = op
	}

	return api, nil
}

// Load reads and parses one manifest file.
func Load(path string) (*svc.API, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	api, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return api, nil
}

// LoadDir loads every .yml and .yaml file in dir, sorted by service id.
// A missing directory yields no services.
func LoadDir(dir string) ([]*svc.API, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var apis []*svc.API

	seen := map[string]string{}

	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		api, err := Load(path)
		if err != nil {
			return nil, err
		}

		if prev, dup := seen[api.Metadata.ServiceID]; dup {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateAPI, api.Metadata.ServiceID, prev, path)
		}

		seen[api.Metadata.ServiceID] = path
		apis = append(apis, api)
	}

	sort.Slice(apis, func(i, j int) bool {
		return apis[i].Metadata.ServiceID < apis[j].Metadata.ServiceID
	})

	return apis, nil
}

func (m metadataDoc) toMetadata() svc.ServiceMetadata {
	prefix := m.EndpointPrefix
	if prefix == "" {
		prefix = strings.ToLower(m.ServiceID)
	}

	return svc.ServiceMetadata{
		ServiceID:        m.ServiceID,
		EndpointPrefix:   prefix,
		SigningName:      m.SigningName,
		APIVersion:       m.APIVersion,
		Protocol:         svc.Protocol(m.Protocol),
		SignatureVersion: m.SignatureVersion,
		JSONVersion:      m.JSONVersion,
		TargetPrefix:     m.TargetPrefix,
		XMLNamespace:     m.XMLNamespace,
		GlobalEndpoint:   m.GlobalEndpoint,
	}
}

type resolver struct {
	docs   map[string]shapeDoc
	shapes map[string]*svc.Shape
}

func (r *resolver) shape(name string) (*svc.Shape, error) {
	if s, ok := r.shapes[name]; ok {
		return s, nil
	}

	doc, ok := r.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownShape, name)
	}

	typ, ok := shapeTypes[doc.Type]
	if !ok {
		return nil, fmt.Errorf("%w: shape %s has type %q", ErrInvalidManifest, name, doc.Type)
	}

	s := &svc.Shape{
		Name:            name,
		Type:            typ,
		Flattened:       doc.Flattened,
		TimestampFormat: svc.TimestampFormat(doc.TimestampFormat),
		LocationName:    doc.LocationName,
		XMLNamespace:    doc.XMLNamespace,
		Payload:         doc.Payload,
		Streaming:       doc.Streaming,
	}

	// Registered before members resolve so recursive shapes terminate.
	r.shapes[name] = s

	var err error

	switch typ {
	case svc.TypeStructure:
		s.Members, err = r.members(name, doc)
	case svc.TypeList:
		s.Member, err = r.member(name, "member", doc.Member)
	case svc.TypeMap:
		if s.Key, err = r.member(name, "key", doc.Key); err == nil {
			s.Value, err = r.member(name, "value", doc.Value)
		}
	}

	if err != nil {
		return nil, err
	}

	return s, nil
}

func (r *resolver) members(name string, doc shapeDoc) ([]*svc.Member, error) {
	node := &doc.Members
	if node.Kind == 0 {
		return nil, nil
	}

	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: shape %s members must be a mapping", ErrInvalidManifest, name)
	}

	required := make(map[string]bool, len(doc.Required))
	for _, n := range doc.Required {
		required[n] = true
	}

	members := make([]*svc.Member, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		memberName := node.Content[i].Value

		var md memberDoc
		if err := node.Content[i+1].Decode(&md); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidManifest, name, memberName, err)
		}

		m, err := r.member(name, memberName, &md)
		if err != nil {
			return nil, err
		}

		m.Name = memberName
		m.Required = required[memberName]
		members = append(members, m)
		delete(required, memberName)
	}

	if len(required) > 0 {
		missing := make([]string, 0, len(required))
		for n := range required {
			missing = append(missing, n)
		}

		sort.Strings(missing)

		return nil, fmt.Errorf("%w: shape %s requires undeclared members %s",
			ErrInvalidManifest, name, strings.Join(missing, ", "))
	}

	return members, nil
}

func (r *resolver) member(owner, field string, md *memberDoc) (*svc.Member, error) {
	if md == nil || md.Shape == "" {
		return nil, fmt.Errorf("%w: %s.%s needs a shape", ErrInvalidManifest, owner, field)
	}

	target, err := r.shape(md.Shape)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", owner, field, err)
	}

	return &svc.Member{
		Shape:           target,
		Location:        svc.Location(md.Location),
		LocationName:    md.LocationName,
		TimestampFormat: svc.TimestampFormat(md.TimestampFormat),
		XMLAttribute:    md.XMLAttribute,
		XMLNamespace:    md.XMLNamespace,
		Flattened:       md.Flattened,
	}, nil
}

func (r *resolver) operation(name string, od operationDoc) (*svc.Operation, error) {
	op := &svc.Operation{
		Name: name,
		HTTP: svc.HTTPBinding{
			Method:       od.HTTP.Method,
			RequestURI:   od.HTTP.RequestURI,
			ResponseCode: od.HTTP.ResponseCode,
		},
		Errors: od.Errors,
	}

	if op.HTTP.Method == "" {
		op.HTTP.Method = "POST"
	}

	if op.HTTP.RequestURI == "" {
		op.HTTP.RequestURI = "/"
	}

	var err error

	if od.Input != "" {
		if op.Input, err = r.shape(od.Input); err != nil {
			return nil, fmt.Errorf("operation %s input: %w", name, err)
		}
	}

	if od.Output != "" {
		if op.Output, err = r.shape(od.Output); err != nil {
			return nil, fmt.Errorf("operation %s output: %w", name, err)
		}
	}

	if p := od.Paginator; p != nil {
		op.Paginator = &svc.PaginationDescriptor{
			InputTokens:  p.InputToken,
			OutputTokens: p.OutputToken,
			ResultKeys:   p.ResultKey,
			LimitKey:     p.LimitKey,
			MoreResults:  p.MoreResults,
		}
	}

	return op, nil
}
