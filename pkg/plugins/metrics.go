package plugins

import (
	"context"
	"strconv"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/prometheus/client_golang/prometheus"
)

var callDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds the Prometheus instruments of the metrics plugin.
type Metrics struct {
	CallsTotal    *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	AttemptsTotal *prometheus.CounterVec
	RetriesTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers the instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svc_client_calls_total",
			Help: "Total number of operation calls.",
		}, []string{"service", "operation", "outcome"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svc_client_call_duration_seconds",
			Help:    "Operation call duration in seconds, retries included.",
			Buckets: callDurationBuckets,
		}, []string{"service", "operation"}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svc_client_attempts_total",
			Help: "Total number of transmission attempts.",
		}, []string{"service", "operation", "status"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svc_client_retries_total",
			Help: "Total number of retried attempts.",
		}, []string{"service", "operation"}),
	}

	if reg != nil {
		reg.MustRegister(m.CallsTotal, m.CallDuration, m.AttemptsTotal, m.RetriesTotal)
	}

	return m
}

// Plugin returns the plugin recording into m.
func (m *Metrics) Plugin() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameMetrics,
		Handlers: []svc.HandlerSpec{
			{
				Step:     svc.StepValidate,
				Name:     HandlerMetrics,
				Handler:  svc.HandlerFunc(m.observeCall),
				Position: svc.Front,
			},
			{
				Step:     svc.StepSend,
				Name:     HandlerMetricsSend,
				Handler:  svc.HandlerFunc(m.observeAttempt),
				Position: svc.Front,
			},
		},
	}
}

func (m *Metrics) observeCall(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	start := time.Now()

	err := next(ctx, rc)
	if err == nil {
		err = rc.Error
	}

	service, operation := rc.ServiceID(), rc.OperationName()

	outcome := "success"
	if err != nil {
		outcome = svc.ClassificationOf(err).String()
	}

	m.CallsTotal.WithLabelValues(service, operation, outcome).Inc()
	m.CallDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())

	if rc.RetryCount > 0 {
		m.RetriesTotal.WithLabelValues(service, operation).Add(float64(rc.RetryCount))
	}

	return err
}

func (m *Metrics) observeAttempt(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	err := next(ctx, rc)

	status := "error"
	if rc.HTTPResponse != nil {
		status = strconv.Itoa(rc.HTTPResponse.StatusCode)
	}

	m.AttemptsTotal.WithLabelValues(rc.ServiceID(), rc.OperationName(), status).Inc()

	return err
}
