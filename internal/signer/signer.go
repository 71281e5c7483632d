// Package signer provides the request signers selected by a service's
// signature version.
package signer

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // required by the S3 legacy signature
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"sort"

	v4 "github.com/fivetwenty-io/svc-client/internal/signer/v4"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Signature versions.
const (
	VersionNone = "none"
	VersionV2   = "v2"
	VersionV3   = "v3"
	VersionV4   = "v4"
	VersionS3   = "s3"
)

// ErrUnknownVersion is returned for an unsupported signature version.
var ErrUnknownVersion = errors.New("unknown signature version")

var factories = map[string]func() svc.Signer{
	VersionNone: func() svc.Signer { return Anonymous{} },
	VersionV2:   func() svc.Signer { return &V2{} },
	VersionV3:   func() svc.Signer { return &V3{} },
	VersionV4:   func() svc.Signer { return v4.New() },
	VersionS3:   func() svc.Signer { return &S3{} },
}

// New returns the signer for version. An empty version selects v4.
func New(version string) (svc.Signer, error) {
	if version == "" {
		version = VersionV4
	}

	factory, ok := factories[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}

	return factory(), nil
}

// Versions returns the supported signature versions.
func Versions() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// Anonymous leaves requests unsigned.
type Anonymous struct{}

// Sign implements svc.Signer.
func (Anonymous) Sign(*svc.HTTPRequest, svc.Credentials, svc.SigningContext) error {
	return nil
}

func sign(h func() hash.Hash, key string, data string) string {
	mac := hmac.New(h, []byte(key))
	mac.Write([]byte(data))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signSHA256(key, data string) string {
	return sign(sha256.New, key, data)
}

func signSHA1(key, data string) string {
	return sign(sha1.New, key, data)
}
