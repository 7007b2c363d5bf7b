// Package metrics instruments a bridge run with Prometheus collectors. A run
// is a short-lived process, so collectors live in a private registry that can
// be pushed to a Pushgateway at exit.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "vixbridge"

// Chunk kinds.
const (
	KindHeader = "header"
	KindBody   = "body"
)

// Metrics holds the collectors of one run.
type Metrics struct {
	registry *prometheus.Registry

	ChunksTotal          *prometheus.CounterVec
	ChunkBytesTotal      *prometheus.CounterVec
	FlushDuration        prometheus.Histogram
	ProviderPhaseSeconds *prometheus.HistogramVec
	ProviderErrorsTotal  *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_total",
				Help:      "Chunks written to the host",
			},
			[]string{"kind"},
		),
		ChunkBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_bytes_total",
				Help:      "Payload bytes written to the host",
			},
			[]string{"kind"},
		),
		FlushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Output flush duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		ProviderPhaseSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_phase_duration_seconds",
				Help:      "Provider lifecycle phase duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"provider", "phase"},
		),
		ProviderErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Provider lifecycle failures",
			},
			[]string{"provider", "phase"},
		),
	}
	m.registry.MustRegister(
		m.ChunksTotal,
		m.ChunkBytesTotal,
		m.FlushDuration,
		m.ProviderPhaseSeconds,
		m.ProviderErrorsTotal,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Push sends the registry to a Pushgateway under job, grouped by the given label pairs.
func (m *Metrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	p := push.New(url, job).Gatherer(m.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
