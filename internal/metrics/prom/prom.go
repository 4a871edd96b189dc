// Package prom implements a Prometheus backend for the metrics package. The
// registry is served on /metrics for scraping and, when a gateway URL is
// configured, pushed to a Pushgateway on Flush.
package prom

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics"
)

// Backend is a Prometheus metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	planCounter  *prometheus.CounterVec
}

// NewBackend constructs a backend. gatewayURL may be empty to disable pushing.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if jobName == "" {
		jobName = "sgbd"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Executed alteration steps, partitioned by action, constraint kind and status.",
		},
		[]string{"action", "kind", "status"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Duration of alteration steps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"action", "kind", "status"},
	)
	planCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.PlansTotal,
			Help: "Finished alteration plans, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, planCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prom: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		planCounter:  planCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["action"], labels["kind"], labels["status"]).Add(delta)
	case metrics.PlansTotal:
		b.planCounter.WithLabelValues(labels["outcome"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds {
		return
	}
	b.stepDuration.WithLabelValues(labels["action"], labels["kind"], labels["status"]).Observe(value)
}

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{Registry: b.reg})
}

// Flush pushes the registry to the Pushgateway when one is configured.
func (b *Backend) Flush() error {
	if b.gatewayURL == "" {
		return nil
	}
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
