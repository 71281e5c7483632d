// Package http is the default transport: a pooled go-retryablehttp client
// whose own retries are disabled, since the pipeline's retry handler owns
// retry decisions.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/hashicorp/go-retryablehttp"
)

// Client transmits signed requests.
type Client struct {
	client *retryablehttp.Client
	logger svc.Logger
	debug  bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger svc.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug logs every request and response.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithHTTPClient replaces the underlying HTTP client. A nil client keeps
// the default.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client.HTTPClient = httpClient
		}
	}
}

// NewClient returns a transport.
func NewClient(opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, _ *http.Response, _ error) (bool, error) {
		return false, ctx.Err()
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if transport, ok := rc.HTTPClient.Transport.(*http.Transport); ok {
		transport.IdleConnTimeout = constants.IdleConnTimeout
		transport.MaxIdleConnsPerHost = constants.MaxIdleConnsPerHost
	}

	c := &Client{client: rc, logger: svc.NopLogger{}}

	for _, opt := range opts {
		opt(c)
	}

	if c.debug {
		rc.Logger = &leveledLogger{logger: c.logger}
		rc.RequestLogHook = c.logRequest
		rc.ResponseLogHook = c.logResponse
	}

	return c
}

// Transmit implements svc.Transport.
func (c *Client) Transmit(ctx context.Context, req *svc.HTTPRequest, timeout time.Duration) (*svc.HTTPResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body := retryablehttp.ReaderFunc(req.Reader)

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL().String(), body)
	if err != nil {
		return nil, &svc.ConnectionError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}

	httpReq.Host = req.Host()
	httpReq.ContentLength = contentLength(req)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		return nil, transportError(ctx, err)
	}

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, fmt.Errorf("failed to read response body: %w", err))
	}

	return &svc.HTTPResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func contentLength(req *svc.HTTPRequest) int64 {
	if !req.Streaming() {
		return int64(req.Body.Len())
	}

	if v := req.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if req.EncodeStream != nil {
		return -1
	}

	return req.StreamLength
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &svc.TimeoutError{Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &svc.TimeoutError{Err: err}
	}

	return &svc.ConnectionError{Err: err}
}

func (c *Client) logRequest(_ retryablehttp.Logger, req *http.Request, attempt int) {
	c.logger.Debug("HTTP Request", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"attempt": attempt,
	})
}

func (c *Client) logResponse(_ retryablehttp.Logger, resp *http.Response) {
	c.logger.Debug("HTTP Response", map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	})
}

// leveledLogger adapts svc.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger svc.Logger
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return out
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, fields(keysAndValues))
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues))
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues))
}
