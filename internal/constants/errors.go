package constants

import "errors"

// Configuration errors.
var (
	ErrNoServicesRegistered = errors.New("no services registered")
	ErrUnknownService       = errors.New("unknown service")
	ErrInvalidParams        = errors.New("invalid --params JSON")
	ErrUnsupportedFormat    = errors.New("unsupported output format")
)

// Credential errors.
var (
	ErrNoCredentialsEndpoint = errors.New("no credentials endpoint configured")
	ErrCredentialsEndpoint   = errors.New("credentials endpoint request failed")
)

// Cache errors.
var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFound           = errors.New("key not found")
	ErrEntryExpired          = errors.New("entry expired")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// Circuit breaker errors.
var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)
