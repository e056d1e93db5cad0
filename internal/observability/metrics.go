package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects application metrics. Adapted from
// felipepmaragno-ai-gateway/internal/metrics/metrics.go: tenant-scoped,
// streaming and budget metrics are dropped (multi-tenant isolation,
// streaming and a full billing engine are Non-goals) in favor of
// provider/workload dimensions this gateway actually has.
type Metrics interface {
	RecordRequest(ctx context.Context, labels RequestLabels)
	RecordLatency(ctx context.Context, durationSeconds float64, labels RequestLabels)
	RecordTokens(ctx context.Context, input, output int, labels RequestLabels)
	RecordProviderError(ctx context.Context, provider, errorKind string)
	SetHealthStatus(provider, status string)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	Provider string
	Model    string
	Workload string
	Status   string
}

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrelay_requests_total",
			Help: "Total number of generate requests processed",
		},
		[]string{"provider", "model", "workload", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmrelay_request_duration_seconds",
			Help:    "Attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "workload"},
	)

	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrelay_tokens_total",
			Help: "Total number of tokens processed",
		},
		[]string{"provider", "model", "type"},
	)

	providerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrelay_provider_errors_total",
			Help: "Total number of classified provider errors",
		},
		[]string{"provider", "error_kind"},
	)

	providerHealthStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llmrelay_provider_health_status",
			Help: "Provider health status (0=available, 1=degraded, 2=unavailable)",
		},
		[]string{"provider"},
	)
)

var healthStatusValues = map[string]float64{
	"available":   0,
	"degraded":    1,
	"unavailable": 2,
}

// PrometheusMetrics is the default Metrics implementation, backed by the
// process-wide Prometheus registry.
type PrometheusMetrics struct{}

// NewPrometheusMetrics returns a PrometheusMetrics collector.
func NewPrometheusMetrics() *PrometheusMetrics { return &PrometheusMetrics{} }

func (*PrometheusMetrics) RecordRequest(ctx context.Context, labels RequestLabels) {
	requestsTotal.WithLabelValues(labels.Provider, labels.Model, labels.Workload, labels.Status).Inc()
}

func (*PrometheusMetrics) RecordLatency(ctx context.Context, durationSeconds float64, labels RequestLabels) {
	requestDuration.WithLabelValues(labels.Provider, labels.Model, labels.Workload).Observe(durationSeconds)
}

func (*PrometheusMetrics) RecordTokens(ctx context.Context, input, output int, labels RequestLabels) {
	tokensTotal.WithLabelValues(labels.Provider, labels.Model, "input").Add(float64(input))
	tokensTotal.WithLabelValues(labels.Provider, labels.Model, "output").Add(float64(output))
}

func (*PrometheusMetrics) RecordProviderError(ctx context.Context, provider, errorKind string) {
	providerErrorsTotal.WithLabelValues(provider, errorKind).Inc()
}

func (*PrometheusMetrics) SetHealthStatus(provider, status string) {
	v, ok := healthStatusValues[status]
	if !ok {
		return
	}
	providerHealthStatus.WithLabelValues(provider).Set(v)
}
