package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for one transmission attempt.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for metadata and credential endpoints.
	ShortHTTPTimeout = 5 * time.Second

	// CredentialsRefreshTimeout bounds one coalesced credentials refresh.
	CredentialsRefreshTimeout = 15 * time.Second

	// IdleConnTimeout is how long idle keep-alive connections are kept.
	IdleConnTimeout = 90 * time.Second

	// MaxIdleConnsPerHost bounds idle connections per endpoint.
	MaxIdleConnsPerHost = 16
)

// Retry defaults.
const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the first backoff step for transient errors.
	DefaultRetryBaseDelay = 100 * time.Millisecond

	// DefaultThrottleBaseDelay is the first backoff step for throttling errors.
	DefaultThrottleBaseDelay = 500 * time.Millisecond

	// DefaultRetryMaxDelay caps a single backoff wait.
	DefaultRetryMaxDelay = 20 * time.Second

	// LowRetryMax is used for credential endpoint fetches.
	LowRetryMax = 2

	// ExponentialBackoffBase is the base for exponential backoff.
	ExponentialBackoffBase = 2
)

// Credentials.
const (
	// CredentialsExpiryWindow refreshes credentials this long before they expire.
	CredentialsExpiryWindow = 5 * time.Minute

	// TokenExpirationBuffer is the minimum remaining lifetime of cached credentials.
	TokenExpirationBuffer = 30 * time.Second
)

// Cache sizes and lifetimes.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultNATSBucket is the JetStream key-value bucket for shared credentials.
	DefaultNATSBucket = "svc-credentials"
)

// Rate limiting and circuit breaking.
const (
	// DefaultRateBurst is the burst size when a rate limit is set without one.
	DefaultRateBurst = 1

	// CircuitBreakerThreshold is the failure threshold for circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for circuit breaker.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is the timeout for circuit breaker.
	CircuitBreakerTimeout = 30 * time.Second
)

// Endpoints.
const (
	// RegionalEndpointPattern expands {service} and {region} into a host.
	RegionalEndpointPattern = "{service}.{region}.amazonaws.com"

	// DefaultScheme is used for endpoints configured without one.
	DefaultScheme = "https"
)

// Request identification.
const (
	// UserAgentPrefix starts every User-Agent header.
	UserAgentPrefix = "svc-client-go"

	// InvocationIDHeader carries the id shared by all attempts of a call.
	InvocationIDHeader = "Amz-Sdk-Invocation-Id"

	// RequestAttemptHeader carries the attempt number and retry limit.
	RequestAttemptHeader = "Amz-Sdk-Request"
)

// State and status constants.
const (
	// StatusClosed indicates a closed circuit.
	StatusClosed = "closed"

	// StatusOpen indicates an open state.
	StatusOpen = "open"

	// StatusHalfOpen indicates a half-open state.
	StatusHalfOpen = "half-open"
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// None is used when no value is present.
	None = "none"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// StringTruncationLength is the default length for truncating strings.
	StringTruncationLength = 80

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// MinimumArgumentCount is the minimum number of command line arguments.
	MinimumArgumentCount = 2
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)
