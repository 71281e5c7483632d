// Package plugins provides the standard plugins a service client is built
// from: defaults, validation, endpoint resolution, protocol encoding,
// credentials, signing, retries and transmission, plus optional
// observability and traffic-shaping plugins.
package plugins

import (
	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Plugin names.
const (
	NameDefaults       = "defaults"
	NameValidation     = "validation"
	NameEndpoint       = "endpoint"
	NameProtocol       = "protocol"
	NameUserAgent      = "user-agent"
	NameInvocationID   = "invocation-id"
	NameCredentials    = "credentials"
	NameSignature      = "signature"
	NameRetry          = "retry"
	NameSend           = "send"
	NameLogging        = "logging"
	NameMetrics        = "metrics"
	NameTracing        = "tracing"
	NameRateLimit      = "rate-limit"
	NameCircuitBreaker = "circuit-breaker"
)

// Handler names.
const (
	HandlerValidate      = "validation.params"
	HandlerEndpoint      = "endpoint.resolve"
	HandlerBuild         = "protocol.build"
	HandlerParse         = "protocol.parse"
	HandlerUserAgent     = "useragent.header"
	HandlerInvocationID  = "invocation.id"
	HandlerAttemptHeader = "invocation.attempt"
	HandlerCredentials   = "credentials.retrieve"
	HandlerSign          = "signature.sign"
	HandlerRetry         = "retry.attempts"
	HandlerSend          = "transport.send"
	HandlerLogging       = "logging.call"
	HandlerMetrics       = "metrics.call"
	HandlerMetricsSend   = "metrics.attempt"
	HandlerTracing       = "tracing.span"
	HandlerTracingSend   = "tracing.attempt"
	HandlerRateLimit     = "ratelimit.wait"
	HandlerCircuit       = "circuitbreaker.guard"
)

// Defaults contributes the baseline option values for a service.
func Defaults(meta *svc.ServiceMetadata) svc.Plugin {
	defaults := svc.Options{
		svc.OptMaxRetries:        constants.DefaultMaxRetries,
		svc.OptRetryBaseDelay:    constants.DefaultRetryBaseDelay,
		svc.OptRetryMaxDelay:     constants.DefaultRetryMaxDelay,
		svc.OptThrottleBaseDelay: constants.DefaultThrottleBaseDelay,
		svc.OptHTTPTimeout:       constants.DefaultHTTPTimeout,
		svc.OptValidateParams:    true,
	}

	if meta != nil && meta.SignatureVersion != "" {
		defaults[svc.OptSignatureVersion] = meta.SignatureVersion
	}

	return &svc.PluginSpec{PluginName: NameDefaults, Defaults: defaults}
}

// DefaultPlugins returns the plugin set every client is built with, in
// registration order.
func DefaultPlugins(meta *svc.ServiceMetadata) []svc.Plugin {
	return []svc.Plugin{
		Defaults(meta),
		Validation(),
		Endpoint(),
		Protocol(),
		UserAgent(),
		InvocationID(),
		Credentials(),
		Signature(),
		NewRetry(),
		Send(),
	}
}
