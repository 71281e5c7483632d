package svc

import (
	"errors"
	"net/http"
)

// ErrorClassification is the retry-relevant category assigned to a failure.
type ErrorClassification int

const (
	Unknown ErrorClassification = iota
	RetryableTransient
	RetryableThrottling
	ClientError
	ServerError
)

// String returns the classification name.
func (c ErrorClassification) String() string {
	switch c {
	case RetryableTransient:
		return "retryable-transient"
	case RetryableThrottling:
		return "retryable-throttling"
	case ClientError:
		return "client-error"
	case ServerError:
		return "server-error"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this class may be attempted again.
func (c ErrorClassification) Retryable() bool {
	return c == RetryableTransient || c == RetryableThrottling
}

// Classifier assigns a classification to a failed attempt. Returning Unknown
// lets the next classifier in a chain decide.
type Classifier interface {
	Classify(rc *RequestContext, err error) ErrorClassification
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(rc *RequestContext, err error) ErrorClassification

// Classify implements Classifier.
func (f ClassifierFunc) Classify(rc *RequestContext, err error) ErrorClassification {
	return f(rc, err)
}

// ClassifierChain asks each classifier in order and returns the first
// non-Unknown answer.
type ClassifierChain []Classifier

// Classify implements Classifier.
func (c ClassifierChain) Classify(rc *RequestContext, err error) ErrorClassification {
	for _, classifier := range c {
		if classifier == nil {
			continue
		}

		if class := classifier.Classify(rc, err); class != Unknown {
			return class
		}
	}

	return Unknown
}

// CodeClassifier maps service error codes and HTTP status codes to
// classifications. It is the override table passed to the retry handler.
type CodeClassifier struct {
	Codes    map[string]ErrorClassification
	Statuses map[int]ErrorClassification
}

// Classify implements Classifier.
func (c CodeClassifier) Classify(_ *RequestContext, err error) ErrorClassification {
	svcErr := &ServiceError{}
	if !errors.As(err, &svcErr) {
		return Unknown
	}

	if class, ok := c.Codes[svcErr.Code]; ok {
		return class
	}

	if class, ok := c.Statuses[svcErr.StatusCode]; ok {
		return class
	}

	return Unknown
}

// ThrottlingCodes are service error codes that indicate request throttling.
var ThrottlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestThrottledException":              true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"TransactionInProgressException":         true,
	"RequestLimitExceeded":                   true,
	"BandwidthLimitExceeded":                 true,
	"LimitExceededException":                 true,
	"RequestThrottled":                       true,
	"SlowDown":                               true,
	"PriorRequestNotComplete":                true,
	"EC2ThrottledException":                  true,
}

// ExpiredCredentialsCodes are service error codes caused by stale credentials.
// They are retried once fresh credentials have been fetched.
var ExpiredCredentialsCodes = map[string]bool{
	"ExpiredToken":          true,
	"ExpiredTokenException": true,
	"RequestExpired":        true,
}

// TransientCodes are service error codes that indicate a transient fault.
var TransientCodes = map[string]bool{
	"RequestTimeout":          true,
	"RequestTimeoutException": true,
	"InternalError":           true,
	"InternalFailure":         true,
	"ServiceUnavailable":      true,
	"BadDigest":               true,
	"CRC32CheckFailed":        true,
}

// DefaultClassifier implements the built-in classification rules.
var DefaultClassifier = ClassifierFunc(classifyDefault)

func classifyDefault(_ *RequestContext, err error) ErrorClassification {
	if err == nil {
		return Unknown
	}

	connErr := &ConnectionError{}
	if errors.As(err, &connErr) {
		return RetryableTransient
	}

	timeoutErr := &TimeoutError{}
	if errors.As(err, &timeoutErr) {
		return RetryableTransient
	}

	svcErr := &ServiceError{}
	if errors.As(err, &svcErr) {
		return ClassifyServiceError(svcErr.Code, svcErr.StatusCode)
	}

	parseErr := &ProtocolParseError{}
	if errors.As(err, &parseErr) {
		return classifyUnparsed(parseErr.StatusCode)
	}

	validationErr := &ClientValidationError{}
	if errors.As(err, &validationErr) {
		return ClientError
	}

	credsErr := &CredentialsError{}
	if errors.As(err, &credsErr) {
		return ClientError
	}

	return Unknown
}

// classifyUnparsed classifies a response whose body could not be read, such
// as an HTML error page from a proxy, by its status code alone.
func classifyUnparsed(status int) ErrorClassification {
	switch {
	case status == http.StatusTooManyRequests:
		return RetryableThrottling
	case status >= http.StatusInternalServerError:
		return RetryableTransient
	default:
		return Unknown
	}
}

// ClassifyServiceError applies the default code and status rules.
func ClassifyServiceError(code string, status int) ErrorClassification {
	switch {
	case ThrottlingCodes[code] || status == http.StatusTooManyRequests:
		return RetryableThrottling
	case ExpiredCredentialsCodes[code] || TransientCodes[code]:
		return RetryableTransient
	case status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return RetryableTransient
	case status >= http.StatusInternalServerError:
		return ServerError
	case status >= http.StatusBadRequest:
		return ClientError
	default:
		return Unknown
	}
}
