package svc

import (
	"context"
	"fmt"
	"time"
)

// Credentials are the keys a signer authenticates with. A refresh produces a
// new value; a value is never modified in place.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
	Source          string
}

// HasKeys reports whether both key halves are present.
func (c Credentials) HasKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// CanExpire reports whether the credentials carry an expiry.
func (c Credentials) CanExpire() bool {
	return !c.Expires.IsZero()
}

// Expired reports whether the credentials are no longer valid at now.
func (c Credentials) Expired(now time.Time) bool {
	return c.CanExpire() && !now.Before(c.Expires)
}

// ExpiresWithin reports whether the credentials expire within window of now.
func (c Credentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	return c.CanExpire() && !now.Add(window).Before(c.Expires)
}

// Validate returns a CredentialsError when the keys are missing or expired
// at now.
func (c Credentials) Validate(now time.Time) error {
	if !c.HasKeys() {
		return &CredentialsError{Err: ErrMissingCredentials}
	}

	if c.Expired(now) {
		return &CredentialsError{Err: fmt.Errorf("%w at %s", ErrExpiredCredentials, c.Expires.Format(time.RFC3339))}
	}

	return nil
}

// CredentialsProvider fetches credentials. Failures are CredentialsErrors.
type CredentialsProvider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}

// CredentialsProviderFunc adapts a function to CredentialsProvider.
type CredentialsProviderFunc func(ctx context.Context) (Credentials, error)

// Retrieve implements CredentialsProvider.
func (f CredentialsProviderFunc) Retrieve(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

// CredentialsInvalidator is implemented by providers that cache credentials
// and can be told the cached value was rejected.
type CredentialsInvalidator interface {
	Invalidate()
}

// SigningContext is the signing metadata for one attempt.
type SigningContext struct {
	ServiceName string
	Region      string
	Time        time.Time
}

// Signer adds authentication material to a built request. Signing the same
// request with the same inputs reproduces the same signature.
type Signer interface {
	Sign(req *HTTPRequest, creds Credentials, sc SigningContext) error
}

// Codec translates between parameters and the wire for one protocol.
type Codec interface {
	Name() string
	Serialize(op *Operation, meta *ServiceMetadata, params map[string]any, req *HTTPRequest) error
	Deserialize(op *Operation, meta *ServiceMetadata, resp *HTTPResponse) (map[string]any, error)
}

// Transport transmits a signed request. Failures are ConnectionErrors or
// TimeoutErrors.
type Transport interface {
	Transmit(ctx context.Context, req *HTTPRequest, timeout time.Duration) (*HTTPResponse, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *HTTPRequest, timeout time.Duration) (*HTTPResponse, error)

// Transmit implements Transport.
func (f TransportFunc) Transmit(ctx context.Context, req *HTTPRequest, timeout time.Duration) (*HTTPResponse, error) {
	return f(ctx, req, timeout)
}
