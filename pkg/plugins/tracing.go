package plugins

import (
	"context"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fivetwenty-io/svc-client"

// Span attribute keys.
var (
	AttrService        = attribute.Key("svc.service")
	AttrOperation      = attribute.Key("svc.operation")
	AttrAttempt        = attribute.Key("svc.attempt")
	AttrRetries        = attribute.Key("svc.retries")
	AttrStatusCode     = attribute.Key("http.response.status_code")
	AttrRequestID      = attribute.Key("svc.request_id")
	AttrClassification = attribute.Key("svc.error.classification")
)

// Tracing records a span per call and a child span per attempt. A nil
// provider uses the global one.
func Tracing(provider trace.TracerProvider) svc.Plugin {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	t := &tracer{tracer: provider.Tracer(tracerName)}

	return &svc.PluginSpec{
		PluginName: NameTracing,
		Handlers: []svc.HandlerSpec{
			{
				Step:     svc.StepValidate,
				Name:     HandlerTracing,
				Handler:  svc.HandlerFunc(t.traceCall),
				Position: svc.Front,
			},
			{
				Step:     svc.StepSend,
				Name:     HandlerTracingSend,
				Handler:  svc.HandlerFunc(t.traceAttempt),
				Position: svc.Front,
			},
		},
	}
}

type tracer struct {
	tracer trace.Tracer
}

func (t *tracer) traceCall(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	ctx, span := t.tracer.Start(ctx, rc.ServiceID()+"."+rc.OperationName(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrService.String(rc.ServiceID()),
			AttrOperation.String(rc.OperationName()),
		),
	)
	defer span.End()

	err := next(ctx, rc)
	if err == nil {
		err = rc.Error
	}

	span.SetAttributes(AttrRetries.Int(rc.RetryCount))
	endSpan(span, err)

	return err
}

func (t *tracer) traceAttempt(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	ctx, span := t.tracer.Start(ctx, "attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrAttempt.Int(rc.Attempt)),
	)
	defer span.End()

	err := next(ctx, rc)

	if rc.HTTPResponse != nil {
		span.SetAttributes(AttrStatusCode.Int(rc.HTTPResponse.StatusCode))

		if id := rc.HTTPResponse.RequestID(); id != "" {
			span.SetAttributes(AttrRequestID.String(id))
		}
	}

	endSpan(span, err)

	return err
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetAttributes(AttrClassification.String(svc.ClassificationOf(err).String()))
	span.SetStatus(codes.Error, err.Error())
}
