package svc

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AttemptState tracks a single transmission attempt.
type AttemptState int

const (
	AttemptPending AttemptState = iota
	AttemptSent
	AttemptSucceeded
	AttemptFailed
)

// String returns the state name.
func (s AttemptState) String() string {
	switch s {
	case AttemptSent:
		return "sent"
	case AttemptSucceeded:
		return "succeeded"
	case AttemptFailed:
		return "failed"
	default:
		return "pending"
	}
}

// HTTPRequest is the wire request under construction.
type HTTPRequest struct {
	Method   string
	Endpoint *url.URL
	// Path is the escaped request path, without the endpoint's base path.
	Path   string
	Query  url.Values
	Header http.Header
	Body   bytes.Buffer

	// Stream replaces Body when the payload is too large to buffer.
	Stream       io.ReadSeeker
	StreamLength int64
	// EncodeStream wraps Stream on its way to the transport. Signers that
	// sign each chunk install it.
	EncodeStream func(io.Reader) io.Reader
}

// NewHTTPRequest returns an empty request for method.
func NewHTTPRequest(method string) *HTTPRequest {
	return &HTTPRequest{
		Method: method,
		Path:   "/",
		Query:  url.Values{},
		Header: http.Header{},
	}
}

// Streaming reports whether the request carries a streamed payload.
func (r *HTTPRequest) Streaming() bool {
	return r.Stream != nil
}

// URL returns the full request URL.
func (r *HTTPRequest) URL() *url.URL {
	u := &url.URL{Scheme: "https", Path: "/"}
	if r.Endpoint != nil {
		copied := *r.Endpoint
		u = &copied
	}

	base := strings.TrimSuffix(u.EscapedPath(), "/")
	path := r.Path

	if path == "" {
		path = "/"
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	escaped := base + path
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	}

	u.RawQuery = r.Query.Encode()

	return u
}

// Host returns the host the request is sent to.
func (r *HTTPRequest) Host() string {
	if r.Endpoint == nil {
		return ""
	}

	return r.Endpoint.Host
}

// BodyBytes returns the buffered body.
func (r *HTTPRequest) BodyBytes() []byte {
	return r.Body.Bytes()
}

// Reader returns the payload as it is sent on the wire.
func (r *HTTPRequest) Reader() (io.Reader, error) {
	if r.Stream == nil {
		return bytes.NewReader(r.Body.Bytes()), nil
	}

	if _, err := r.Stream.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind request stream: %w", err)
	}

	if r.EncodeStream != nil {
		return r.EncodeStream(r.Stream), nil
	}

	return r.Stream, nil
}

// Clone returns a deep copy. Streams are shared and rewound on use.
func (r *HTTPRequest) Clone() *HTTPRequest {
	clone := &HTTPRequest{
		Method:       r.Method,
		Path:         r.Path,
		Query:        url.Values{},
		Header:       r.Header.Clone(),
		Stream:       r.Stream,
		StreamLength: r.StreamLength,
		EncodeStream: r.EncodeStream,
	}

	if clone.Header == nil {
		clone.Header = http.Header{}
	}

	if r.Endpoint != nil {
		endpoint := *r.Endpoint
		clone.Endpoint = &endpoint
	}

	for k, v := range r.Query {
		clone.Query[k] = append([]string(nil), v...)
	}

	clone.Body.Write(r.Body.Bytes())

	return clone
}

// HTTPResponse is the wire response received for an attempt.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestID returns the service request id from the common headers.
func (r *HTTPResponse) RequestID() string {
	if r == nil || r.Header == nil {
		return ""
	}

	for _, key := range []string{"X-Amzn-Requestid", "X-Amz-Request-Id", "X-Amz-Id-2"} {
		if v := r.Header.Get(key); v != "" {
			return v
		}
	}

	return ""
}

// RequestContext is the mutable state of one logical call. It is owned by
// the call that created it and must not be shared between goroutines.
type RequestContext struct {
	Operation *Operation
	Service   *ServiceMetadata
	Params    map[string]any
	Options   Options

	Logger              Logger
	Transport           Transport
	CredentialsProvider CredentialsProvider
	Clock               func() time.Time

	HTTPRequest  *HTTPRequest
	HTTPResponse *HTTPResponse
	Credentials  Credentials

	Attempt      int
	RetryCount   int
	AttemptState AttemptState
	Errors       []error

	Data  map[string]any
	Error error

	values map[string]any
}

// NewRequestContext returns a context for op with a fresh wire request.
func NewRequestContext(op *Operation, service *ServiceMetadata, params map[string]any) *RequestContext {
	if params == nil {
		params = map[string]any{}
	}

	method := op.HTTP.Method
	if method == "" {
		method = http.MethodPost
	}

	return &RequestContext{
		Operation:   op,
		Service:     service,
		Params:      params,
		Options:     Options{},
		Logger:      NopLogger{},
		Clock:       time.Now,
		HTTPRequest: NewHTTPRequest(method),
	}
}

// Now returns the current time according to the context clock.
func (rc *RequestContext) Now() time.Time {
	if rc.Clock == nil {
		return time.Now()
	}

	return rc.Clock()
}

// Fail records err as the call result and returns it.
func (rc *RequestContext) Fail(err error) error {
	if err == nil {
		return nil
	}

	rc.Error = err
	rc.Errors = append(rc.Errors, err)

	return err
}

// Result returns err if set, otherwise the recorded error.
func (rc *RequestContext) Result(err error) error {
	if err != nil {
		return err
	}

	return rc.Error
}

// Set stores a handler-private value on the context.
func (rc *RequestContext) Set(key string, value any) {
	if rc.values == nil {
		rc.values = map[string]any{}
	}

	rc.values[key] = value
}

// Get returns a value stored with Set.
func (rc *RequestContext) Get(key string) (any, bool) {
	v, ok := rc.values[key]

	return v, ok
}

// Values returns a copy of the handler-private values.
func (rc *RequestContext) Values() map[string]any {
	return maps.Clone(rc.values)
}

// OperationName returns the operation name or "".
func (rc *RequestContext) OperationName() string {
	if rc.Operation == nil {
		return ""
	}

	return rc.Operation.Name
}

// ServiceID returns the service id or "".
func (rc *RequestContext) ServiceID() string {
	if rc.Service == nil {
		return ""
	}

	return rc.Service.ServiceID
}
