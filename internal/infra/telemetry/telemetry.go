package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/record-registry/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	operationCounter *prometheus.CounterVec
	cleanupGauge     prometheus.Gauge
	operationLatency *prometheus.HistogramVec
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		operationCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registry",
			Name:      "lifecycle_operations_total",
			Help:      "Lifecycle operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		cleanupGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "registry",
			Name:      "cleanup_removed_drafts",
			Help:      "Drafts removed by the last cleanup run",
		}),
		operationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "registry",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}, nil
}

// ObserveOperation records one lifecycle operation outcome and latency.
func (p *Provider) ObserveOperation(operation, outcome string, seconds float64) {
	if p == nil {
		return
	}
	p.operationCounter.WithLabelValues(operation, outcome).Inc()
	p.operationLatency.WithLabelValues(operation).Observe(seconds)
}

// SetCleanupRemoved records the size of the last cleanup sweep.
func (p *Provider) SetCleanupRemoved(count int) {
	if p == nil {
		return
	}
	p.cleanupGauge.Set(float64(count))
}
