// Package auth provides credential providers and the caches that let
// clients share refreshed credentials.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/hashicorp/go-retryablehttp"
)

// StaticProvider returns fixed credentials.
type StaticProvider struct {
	Value svc.Credentials
}

// NewStaticProvider returns a provider for the given keys.
func NewStaticProvider(accessKeyID, secretAccessKey, sessionToken string) *StaticProvider {
	return &StaticProvider{Value: svc.Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
		Source:          "static",
	}}
}

// Retrieve implements svc.CredentialsProvider.
func (p *StaticProvider) Retrieve(context.Context) (svc.Credentials, error) {
	if !p.Value.HasKeys() {
		return svc.Credentials{}, &svc.CredentialsError{Err: svc.ErrMissingCredentials}
	}

	return p.Value, nil
}

// MetadataProvider fetches temporary credentials from an HTTP metadata
// endpoint answering with a JSON document.
type MetadataProvider struct {
	Endpoint string
	Header   http.Header
	client   *retryablehttp.Client
}

type metadataCredentials struct {
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	Token           string    `json:"Token"`
	Expiration      time.Time `json:"Expiration"`
	Code            string    `json:"Code,omitempty"`
	Message         string    `json:"Message,omitempty"`
}

// NewMetadataProvider returns a provider reading endpoint.
func NewMetadataProvider(endpoint string) *MetadataProvider {
	client := retryablehttp.NewClient()
	client.RetryMax = constants.LowRetryMax
	client.RetryWaitMax = constants.ShortHTTPTimeout
	client.HTTPClient.Timeout = constants.ShortHTTPTimeout
	client.Logger = nil

	return &MetadataProvider{Endpoint: endpoint, Header: http.Header{}, client: client}
}

// Retrieve implements svc.CredentialsProvider.
func (p *MetadataProvider) Retrieve(ctx context.Context) (svc.Credentials, error) {
	if p.Endpoint == "" {
		return svc.Credentials{}, &svc.CredentialsError{Err: constants.ErrNoCredentialsEndpoint}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint, nil)
	if err != nil {
		return svc.Credentials{}, &svc.CredentialsError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for k, v := range p.Header {
		req.Header[k] = v
	}

	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return svc.Credentials{}, &svc.CredentialsError{Err: fmt.Errorf("failed to fetch credentials: %w", err)}
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return svc.Credentials{}, &svc.CredentialsError{Err: fmt.Errorf("failed to read credentials: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return svc.Credentials{}, &svc.CredentialsError{
			Err: fmt.Errorf("%w: status %d: %s", constants.ErrCredentialsEndpoint, resp.StatusCode, body),
		}
	}

	var doc metadataCredentials
	if err := json.Unmarshal(body, &doc); err != nil {
		return svc.Credentials{}, &svc.CredentialsError{Err: fmt.Errorf("failed to decode credentials: %w", err)}
	}

	if doc.Code != "" && doc.Code != "Success" {
		return svc.Credentials{}, &svc.CredentialsError{
			Err: fmt.Errorf("%w: %s: %s", constants.ErrCredentialsEndpoint, doc.Code, doc.Message),
		}
	}

	creds := svc.Credentials{
		AccessKeyID:     doc.AccessKeyID,
		SecretAccessKey: doc.SecretAccessKey,
		SessionToken:    doc.Token,
		Expires:         doc.Expiration.UTC(),
		Source:          "metadata",
	}

	if !creds.HasKeys() {
		return svc.Credentials{}, &svc.CredentialsError{Err: svc.ErrMissingCredentials}
	}

	return creds, nil
}
