package svcclient

import (
	"net/http"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/auth"
	internalhttp "github.com/fivetwenty-io/svc-client/internal/http"
	"github.com/fivetwenty-io/svc-client/pkg/plugins"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Config collects what New needs to assemble a client.
type Config struct {
	Options     svc.Options
	Store       *svc.Store
	Credentials svc.CredentialsProvider
	Logger      svc.Logger
	Transport   svc.Transport
	HTTPClient  *http.Client
	Debug       bool
	Clock       func() time.Time
	Plugins     []svc.Plugin
	Classifiers []svc.Classifier
}

// Option configures a client.
type Option func(*Config)

// WithRegion sets the region option.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Options[svc.OptRegion] = region
	}
}

// WithEndpoint overrides endpoint resolution.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Options[svc.OptEndpoint] = endpoint
	}
}

// WithOptions sets client options.
func WithOptions(opts svc.Options) Option {
	return func(c *Config) {
		for k, v := range opts {
			c.Options[k] = v
		}
	}
}

// WithStore makes the client read process-wide defaults from store.
func WithStore(store *svc.Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

// WithCredentials sets the credentials provider.
func WithCredentials(provider svc.CredentialsProvider) Option {
	return func(c *Config) {
		c.Credentials = provider
	}
}

// WithStaticCredentials uses fixed keys.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return WithCredentials(auth.NewStaticProvider(accessKeyID, secretAccessKey, sessionToken))
}

// WithMetadataCredentials fetches credentials from an HTTP metadata
// endpoint and reuses them until shortly before they expire.
func WithMetadataCredentials(endpoint string) Option {
	return WithCredentials(auth.NewRefreshingProvider(auth.NewMetadataProvider(endpoint)))
}

// WithLogger sets the logger used by the pipeline and the transport.
func WithLogger(logger svc.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(transport svc.Transport) Option {
	return func(c *Config) {
		c.Transport = transport
	}
}

// WithHTTPClient sets the http.Client used by the default transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = httpClient
	}
}

// WithDebug logs every HTTP exchange of the default transport.
func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}

// WithClock overrides the time source used for signing.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithPlugins adds plugins after the standard set. Registry clients ignore
// it; use Registry.AddPlugin instead.
func WithPlugins(extra ...svc.Plugin) Option {
	return func(c *Config) {
		c.Plugins = append(c.Plugins, extra...)
	}
}

// WithClassifier makes the retry handler consult c before the default
// classification rules, for example to retry a service-specific error code.
// Classifiers added later are consulted first. Registry clients ignore it;
// use WithRegistryClassifier instead.
func WithClassifier(c svc.Classifier) Option {
	return func(cfg *Config) {
		cfg.Classifiers = append(cfg.Classifiers, c)
	}
}

// StandardPlugins returns the plugin set every client starts from, with the
// retry plugin consulting classifiers before the default rules.
func StandardPlugins(meta *svc.ServiceMetadata, classifiers ...svc.Classifier) []svc.Plugin {
	set := plugins.DefaultPlugins(meta)
	if len(classifiers) == 0 {
		return set
	}

	retryOpts := make([]plugins.RetryOption, 0, len(classifiers))
	for _, c := range classifiers {
		retryOpts = append(retryOpts, plugins.WithClassifier(c))
	}

	for i, p := range set {
		if p.Name() == plugins.NameRetry {
			set[i] = plugins.NewRetry(retryOpts...)
		}
	}

	return set
}

func newConfig(opts []Option) *Config {
	cfg := &Config{Options: svc.Options{}, Logger: svc.NopLogger{}}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// New creates a client for api with the standard plugin set.
func New(api *svc.API, opts ...Option) (*svc.Client, error) {
	cfg := newConfig(opts)

	typ, err := svc.NewClientType(api, append(StandardPlugins(&api.Metadata, cfg.Classifiers...), cfg.Plugins...)...)
	if err != nil {
		return nil, err
	}

	return newClient(typ, cfg)
}

func newClient(typ *svc.ClientType, cfg *Config) (*svc.Client, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = internalhttp.NewClient(
			internalhttp.WithLogger(cfg.Logger),
			internalhttp.WithDebug(cfg.Debug),
			internalhttp.WithHTTPClient(cfg.HTTPClient),
		)
	}

	clientOpts := []svc.ClientOption{
		svc.WithOptions(cfg.Options),
		svc.WithLogger(cfg.Logger),
		svc.WithTransport(transport),
		svc.WithCredentials(cfg.Credentials),
	}

	if cfg.Store != nil {
		clientOpts = append(clientOpts, svc.WithStore(cfg.Store))
	}

	if cfg.Clock != nil {
		clientOpts = append(clientOpts, svc.WithClock(cfg.Clock))
	}

	return typ.NewClient(clientOpts...)
}
