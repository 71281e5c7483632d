package svc

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// ClientType binds an API description to an ordered plugin set. The
// resolved chain is rebuilt on every plugin change and swapped in whole, so
// a call always runs against one complete chain.
type ClientType struct {
	api *API

	mu      sync.Mutex
	plugins []Plugin
	chain   atomic.Pointer[ResolvedChain]
}

// NewClientType resolves plugins into a chain for api.
func NewClientType(api *API, plugins ...Plugin) (*ClientType, error) {
	for _, p := range plugins {
		if p == nil {
			return nil, ErrNilPlugin
		}
	}

	t := &ClientType{api: api, plugins: append([]Plugin(nil), plugins...)}

	chain, err := resolvePlugins(t.plugins)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s client type: %w", api.Metadata.ServiceID, err)
	}

	t.chain.Store(chain)

	return t, nil
}

// API returns the service description.
func (t *ClientType) API() *API {
	return t.api
}

// Chain returns the current resolved chain.
func (t *ClientType) Chain() *ResolvedChain {
	return t.chain.Load()
}

// Plugins returns the registered plugins in order.
func (t *ClientType) Plugins() []Plugin {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Plugin(nil), t.plugins...)
}

// HasPlugin reports whether a plugin with name is registered.
func (t *ClientType) HasPlugin(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.find(name) >= 0
}

// AddPlugin appends p and re-resolves. On failure the previous plugin set
// and chain stay in place.
func (t *ClientType) AddPlugin(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.find(p.Name()) >= 0 {
		return nil
	}

	return t.rebuild(append(append([]Plugin(nil), t.plugins...), p))
}

// RemovePlugin removes the plugin named name and re-resolves.
func (t *ClientType) RemovePlugin(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	next := append(append([]Plugin(nil), t.plugins[:i]...), t.plugins[i+1:]...)

	return t.rebuild(next)
}

func (t *ClientType) find(name string) int {
	for i, p := range t.plugins {
		if p.Name() == name {
			return i
		}
	}

	return -1
}

func (t *ClientType) rebuild(plugins []Plugin) error {
	chain, err := resolvePlugins(plugins)
	if err != nil {
		return err
	}

	t.plugins = plugins
	t.chain.Store(chain)

	return nil
}

// Client executes operations of a client type with its own options and
// collaborators. It is safe for concurrent use.
type Client struct {
	typ         *ClientType
	store       *Store
	options     Options
	logger      Logger
	transport   Transport
	credentials CredentialsProvider
	clock       func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithStore sets the process-wide option store the client reads defaults from.
func WithStore(store *Store) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithOptions sets per-client options.
func WithOptions(opts Options) ClientOption {
	return func(c *Client) {
		maps.Copy(c.options, opts)
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransport sets the transport.
func WithTransport(transport Transport) ClientOption {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithCredentials sets the credentials provider.
func WithCredentials(provider CredentialsProvider) ClientOption {
	return func(c *Client) {
		c.credentials = provider
	}
}

// WithClock overrides the time source used for signing and backoff.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// NewClient creates a client of this type.
func (t *ClientType) NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		typ:     t,
		options: Options{},
		logger:  NopLogger{},
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.options.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Type returns the client's type.
func (c *Client) Type() *ClientType {
	return c.typ
}

// Options returns the client's effective options before per-call overrides.
func (c *Client) Options() Options {
	return MergeOptions(c.typ.Chain().Defaults(), c.store.Snapshot(), c.options)
}

// CallOption adjusts a single call.
type CallOption func(*RequestContext)

// WithCallOptions overrides options for one call.
func WithCallOptions(opts Options) CallOption {
	return func(rc *RequestContext) {
		maps.Copy(rc.Options, opts)
	}
}

// NewRequest prepares the context for one call against the current chain.
func (c *Client) NewRequest(operation string, params map[string]any, opts ...CallOption) (*RequestContext, *ResolvedChain, error) {
	op, err := c.typ.api.Operation(operation)
	if err != nil {
		return nil, nil, err
	}

	chain := c.typ.Chain()

	rc := NewRequestContext(op, &c.typ.api.Metadata, params)
	rc.Options = MergeOptions(chain.Defaults(), c.store.Snapshot(), c.options)
	rc.Logger = c.logger
	rc.Transport = c.transport
	rc.CredentialsProvider = c.credentials
	rc.Clock = c.clock

	for _, opt := range opts {
		opt(rc)
	}

	if err := rc.Options.Validate(); err != nil {
		return nil, nil, err
	}

	return rc, chain, nil
}

// Call executes operation with params and returns its output.
func (c *Client) Call(ctx context.Context, operation string, params map[string]any, opts ...CallOption) (map[string]any, error) {
	rc, chain, err := c.NewRequest(operation, params, opts...)
	if err != nil {
		return nil, err
	}

	if err := chain.Execute(ctx, rc); err != nil {
		return nil, err
	}

	return rc.Data, nil
}

// Paginate returns a paginator over a pageable operation.
func (c *Client) Paginate(operation string, params map[string]any, opts ...CallOption) (*Paginator, error) {
	op, err := c.typ.api.Operation(operation)
	if err != nil {
		return nil, err
	}

	if !op.Pageable() {
		return nil, fmt.Errorf("%w: %s", ErrNotPageable, operation)
	}

	return newPaginator(c, op, params, opts), nil
}
