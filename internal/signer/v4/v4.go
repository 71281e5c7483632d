// Package v4 implements Signature Version 4 request signing, including the
// aws-chunked encoding used to sign streamed payloads chunk by chunk.
package v4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

const (
	// Algorithm names the request signing algorithm.
	Algorithm = "AWS4-HMAC-SHA256"

	// StreamingPayload is the payload hash signed for chunk-signed streams.
	StreamingPayload = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"

	// TimeFormat is the X-Amz-Date layout.
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat is the credential scope date layout.
	ShortTimeFormat = "20060102"

	// EmptyPayloadHash is the SHA-256 of an empty body.
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// Headers the transport or proxies may add or rewrite after signing.
var ignoredHeaders = map[string]bool{
	"authorization":   true,
	"user-agent":      true,
	"x-amzn-trace-id": true,
	"expect":          true,
}

// Signer signs requests with Signature Version 4.
type Signer struct {
	// ChunkSize is the payload size of each signed chunk of a stream.
	ChunkSize int
}

// New returns a signer with the default chunk size.
func New() *Signer {
	return &Signer{ChunkSize: DefaultChunkSize}
}

// Signature is the intermediate state of one signing pass.
type Signature struct {
	AmzDate          string
	Scope            string
	CanonicalRequest string
	StringToSign     string
	SignedHeaders    string
	PayloadHash      string
	Value            string
	key              []byte
}

// Sign implements svc.Signer.
func (s *Signer) Sign(req *svc.HTTPRequest, creds svc.Credentials, sc svc.SigningContext) error {
	if err := creds.Validate(sc.Time); err != nil {
		return err
	}

	t := sc.Time.UTC()
	streaming := req.Streaming()

	req.Header.Del("Authorization")
	req.Header.Set("X-Amz-Date", t.Format(TimeFormat))

	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	} else {
		req.Header.Del("X-Amz-Security-Token")
	}

	payloadHash := EmptyPayloadHash

	switch {
	case streaming:
		payloadHash = StreamingPayload
		chunkSize := s.chunkSize()

		req.Header.Set("Content-Encoding", "aws-chunked")
		req.Header.Set("X-Amz-Decoded-Content-Length", strconv.FormatInt(req.StreamLength, 10))
		req.Header.Set("Content-Length", strconv.FormatInt(EncodedLength(req.StreamLength, chunkSize), 10))
	case req.Body.Len() > 0:
		payloadHash = HashHex(req.BodyBytes())
	}

	if streaming || sc.ServiceName == "s3" {
		req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	}

	sig := Compute(req, creds, sc, payloadHash)

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, creds.AccessKeyID, sig.Scope, sig.SignedHeaders, sig.Value))

	if streaming {
		chunkSize := s.chunkSize()
		req.EncodeStream = sig.ChunkEncoder(chunkSize)
	} else {
		req.EncodeStream = nil
	}

	return nil
}

func (s *Signer) chunkSize() int {
	if s.ChunkSize > 0 {
		return s.ChunkSize
	}

	return DefaultChunkSize
}

// Compute derives the signature of req without modifying it.
func Compute(req *svc.HTTPRequest, creds svc.Credentials, sc svc.SigningContext, payloadHash string) *Signature {
	t := sc.Time.UTC()
	sig := &Signature{
		AmzDate:     t.Format(TimeFormat),
		Scope:       strings.Join([]string{t.Format(ShortTimeFormat), sc.Region, sc.ServiceName, "aws4_request"}, "/"),
		PayloadHash: payloadHash,
	}

	headers, signed := canonicalHeaders(req)
	sig.SignedHeaders = signed

	sig.CanonicalRequest = strings.Join([]string{
		req.Method,
		canonicalURI(req.URL(), sc.ServiceName != "s3"),
		CanonicalQuery(req.Query),
		headers,
		signed,
		payloadHash,
	}, "\n")

	sig.StringToSign = strings.Join([]string{
		Algorithm,
		sig.AmzDate,
		sig.Scope,
		HashHex([]byte(sig.CanonicalRequest)),
	}, "\n")

	sig.key = DeriveKey(creds.SecretAccessKey, t, sc.Region, sc.ServiceName)
	sig.Value = hex.EncodeToString(HMAC(sig.key, []byte(sig.StringToSign)))

	return sig
}

// DeriveKey returns the signing key for a date, region and service.
func DeriveKey(secret string, t time.Time, region, service string) []byte {
	key := HMAC([]byte("AWS4"+secret), []byte(t.UTC().Format(ShortTimeFormat)))
	key = HMAC(key, []byte(region))
	key = HMAC(key, []byte(service))

	return HMAC(key, []byte("aws4_request"))
}

// HMAC returns HMAC-SHA256 of data under key.
func HMAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)

	return h.Sum(nil)
}

// HashHex returns the hex SHA-256 of data.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func canonicalHeaders(req *svc.HTTPRequest) (string, string) {
	values := map[string][]string{}

	for k, v := range req.Header {
		name := strings.ToLower(k)
		if ignoredHeaders[name] {
			continue
		}

		values[name] = append(values[name], v...)
	}

	if host := req.Host(); host != "" {
		values["host"] = []string{host}
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}

	sort.Strings(names)

	var b strings.Builder

	for _, name := range names {
		trimmed := make([]string, len(values[name]))
		for i, v := range values[name] {
			trimmed[i] = strings.Join(strings.Fields(v), " ")
		}

		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(trimmed, ","))
		b.WriteByte('\n')
	}

	return b.String(), strings.Join(names, ";")
}

func canonicalURI(u *url.URL, doubleEscape bool) string {
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}

	if doubleEscape {
		return Escape(path, false)
	}

	return path
}

// CanonicalQuery renders query sorted by key and value with RFC 3986
// escaping.
func CanonicalQuery(query url.Values) string {
	escaped := make(map[string][]string, len(query))
	keys := make([]string, 0, len(query))

	for k, vs := range query {
		key := Escape(k, true)
		if _, ok := escaped[key]; !ok {
			keys = append(keys, key)
		}

		for _, v := range vs {
			escaped[key] = append(escaped[key], Escape(v, true))
		}
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		values := escaped[k]
		sort.Strings(values)

		for _, v := range values {
			pairs = append(pairs, k+"="+v)
		}
	}

	return strings.Join(pairs, "&")
}

// Escape percent-encodes every byte outside the RFC 3986 unreserved set.
// Slashes are kept unless encodeSlash is set.
func Escape(s string, encodeSlash bool) string {
	const hexDigits = "0123456789ABCDEF"

	var b strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]

		if unreserved(c) || (c == '/' && !encodeSlash) {
			b.WriteByte(c)

			continue
		}

		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&15])
	}

	return b.String()
}

func unreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
