package svc

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for err113 compliance.
var (
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrUnknownOption      = errors.New("unknown configuration option")
	ErrInvalidOptionType  = errors.New("invalid configuration option type")
	ErrMissingRegion      = errors.New("missing region")
	ErrInvalidParameters  = errors.New("parameters do not match the input shape")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
	ErrNoCredentials      = errors.New("no credentials provider configured")
	ErrNoTransport        = errors.New("no transport configured")
	ErrNoMorePages        = errors.New("no more pages")
	ErrNotPageable        = errors.New("operation is not pageable")
	ErrDuplicateHandler   = errors.New("duplicate handler name")
	ErrConstraintCycle    = errors.New("handler constraint cycle")
	ErrStepOrder          = errors.New("handler constraint contradicts step order")
	ErrUnknownStep        = errors.New("unknown pipeline step")
	ErrInvalidHandler     = errors.New("handler must have a name and an implementation")
	ErrHandlerPanic       = errors.New("handler panicked")
	ErrNilPlugin          = errors.New("plugin is nil")
	ErrPluginNotFound     = errors.New("plugin not registered")
)

// ClientValidationError reports bad input detected before any network I/O.
type ClientValidationError struct {
	Operation string
	Problems  []string
	Err       error
}

// Error implements the error interface.
func (e *ClientValidationError) Error() string {
	var b strings.Builder

	b.WriteString("invalid parameters")

	if e.Operation != "" {
		b.WriteString(" for ")
		b.WriteString(e.Operation)
	}

	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *ClientValidationError) Unwrap() error { return e.Err }

// CredentialsError reports an unmet signing prerequisite.
type CredentialsError struct {
	Err error
}

// Error implements the error interface.
func (e *CredentialsError) Error() string {
	return fmt.Sprintf("credentials: %v", e.Err)
}

func (e *CredentialsError) Unwrap() error { return e.Err }

// ProtocolParseError reports a wire body that could not be decoded.
type ProtocolParseError struct {
	Protocol   string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("%s: unable to parse response (status %d): %v", e.Protocol, e.StatusCode, e.Err)
}

func (e *ProtocolParseError) Unwrap() error { return e.Err }

// ServiceError is a well-formed error response returned by the remote service.
type ServiceError struct {
	Code           string
	Message        string
	StatusCode     int
	RequestID      string
	Declared       bool
	Classification ErrorClassification
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	if e.RequestID != "" {
		msg += ", request id: " + e.RequestID
	}

	return msg
}

// ConnectionError reports a transport failure before a response was read.
type ConnectionError struct {
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports an attempt or call that exceeded its deadline.
type TimeoutError struct {
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ChainResolutionError is returned while building a client type, never per call.
type ChainResolutionError struct {
	Step     Step
	Handlers []string
	Err      error
}

// Error implements the error interface.
func (e *ChainResolutionError) Error() string {
	return fmt.Sprintf("resolving %s step: %v: %s", e.Step, e.Err, strings.Join(e.Handlers, ", "))
}

func (e *ChainResolutionError) Unwrap() error { return e.Err }

// ErrorCode returns the service-declared code of err, or "".
func ErrorCode(err error) string {
	svcErr := &ServiceError{}
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}

	return ""
}

// ClassificationOf returns the retry classification carried by err.
func ClassificationOf(err error) ErrorClassification {
	svcErr := &ServiceError{}
	if errors.As(err, &svcErr) {
		return svcErr.Classification
	}

	connErr := &ConnectionError{}
	if errors.As(err, &connErr) {
		return RetryableTransient
	}

	timeoutErr := &TimeoutError{}
	if errors.As(err, &timeoutErr) {
		return RetryableTransient
	}

	validationErr := &ClientValidationError{}
	if errors.As(err, &validationErr) {
		return ClientError
	}

	return Unknown
}

// IsRetryable checks if the error is classified as retryable.
func IsRetryable(err error) bool {
	return ClassificationOf(err).Retryable()
}

// IsThrottling checks if the error is a throttling error.
func IsThrottling(err error) bool {
	return ClassificationOf(err) == RetryableThrottling
}
