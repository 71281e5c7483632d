package svcclient

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Errors returned by Registry lookups.
var (
	ErrNoServicesRegistered = constants.ErrNoServicesRegistered
	ErrUnknownService       = constants.ErrUnknownService
)

// Registry maps service ids to client types. Plugins added to the registry
// apply to every registered service, including ones registered later.
type Registry struct {
	mu          sync.RWMutex
	types       map[string]*svc.ClientType
	plugins     []svc.Plugin
	classifiers []svc.Classifier
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClassifier makes the retry handler of every registered
// service consult c before the default classification rules.
func WithRegistryClassifier(c svc.Classifier) RegistryOption {
	return func(r *Registry) {
		r.classifiers = append(r.classifiers, c)
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{types: map[string]*svc.ClientType{}}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func key(serviceID string) string {
	return strings.ToLower(serviceID)
}

// Register builds a client type for api from the standard plugins plus
// every plugin added to the registry so far. Registering a service id again
// replaces its client type.
func (r *Registry) Register(api *svc.API) (*svc.ClientType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ, err := svc.NewClientType(api, append(StandardPlugins(&api.Metadata, r.classifiers...), r.plugins...)...)
	if err != nil {
		return nil, err
	}

	r.types[key(api.Metadata.ServiceID)] = typ

	return typ, nil
}

// Lookup returns the client type of a service. Service ids match
// case-insensitively.
func (r *Registry) Lookup(serviceID string) (*svc.ClientType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.types) == 0 {
		return nil, ErrNoServicesRegistered
	}

	typ, ok := r.types[key(serviceID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}

	return typ, nil
}

// Services returns the registered service ids, sorted.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.types))
	for _, typ := range r.types {
		ids = append(ids, typ.API().Metadata.ServiceID)
	}

	sort.Strings(ids)

	return ids
}

// New creates a client of a registered service.
func (r *Registry) New(serviceID string, opts ...Option) (*svc.Client, error) {
	typ, err := r.Lookup(serviceID)
	if err != nil {
		return nil, err
	}

	return newClient(typ, newConfig(opts))
}

// AddPlugin adds p to every registered service. If any service cannot
// resolve its chain with p, the services already changed are restored and
// the error is returned.
func (r *Registry) AddPlugin(p svc.Plugin) error {
	if p == nil {
		return svc.ErrNilPlugin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []*svc.ClientType

	for _, typ := range r.sortedTypes() {
		if typ.HasPlugin(p.Name()) {
			continue
		}

		if err := typ.AddPlugin(p); err != nil {
			for _, done := range added {
				_ = done.RemovePlugin(p.Name())
			}

			return fmt.Errorf("%s: %w", typ.API().Metadata.ServiceID, err)
		}

		added = append(added, typ)
	}

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return nil
		}
	}

	r.plugins = append(r.plugins, p)

	return nil
}

// RemovePlugin removes the plugin named name from every registered service
// that has it.
func (r *Registry) RemovePlugin(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false

	for i, p := range r.plugins {
		if p.Name() == name {
			r.plugins = append(r.plugins[:i:i], r.plugins[i+1:]...)
			found = true

			break
		}
	}

	for _, typ := range r.sortedTypes() {
		if !typ.HasPlugin(name) {
			continue
		}

		if err := typ.RemovePlugin(name); err != nil {
			return fmt.Errorf("%s: %w", typ.API().Metadata.ServiceID, err)
		}

		found = true
	}

	if !found {
		return fmt.Errorf("%w: %s", svc.ErrPluginNotFound, name)
	}

	return nil
}

func (r *Registry) sortedTypes() []*svc.ClientType {
	keys := make([]string, 0, len(r.types))
	for k := range r.types {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	types := make([]*svc.ClientType, 0, len(keys))
	for _, k := range keys {
		types = append(types, r.types[k])
	}

	return types
}
