// Package metrics holds the Prometheus instruments for an embedding run.
//
// Every run owns a private registry so tests and repeated runs never collide
// on global registration. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "newsembed"

// Batch outcomes used as the "result" label.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Metrics holds Prometheus metrics for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	VectorsUpserted prometheus.Counter
	Batches         *prometheus.CounterVec
	Chunks          prometheus.Counter
	EmbedErrors     prometheus.Counter
	EmbedDuration   prometheus.Histogram
	UpsertDuration  prometheus.Histogram
}

// New creates the pipeline metrics on a fresh registry.
//
// Metrics:
//   - newsembed_vectors_upserted_total - vectors accepted by the store
//   - newsembed_batches_total{result} - embedding batches delivered or failed
//   - newsembed_chunks_total - chunks pulled from the source
//   - newsembed_embed_errors_total - failed single-item embed calls
//   - newsembed_embed_duration_seconds - single-item embed latency
//   - newsembed_upsert_duration_seconds - store write latency per batch
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		VectorsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_upserted_total",
			Help:      "Total number of vectors accepted by the vector store",
		}),
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of embedding batches by outcome",
		}, []string{"result"}),
		Chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Total number of chunks pulled from the source table",
		}),
		EmbedErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_errors_total",
			Help:      "Total number of failed embed calls",
		}),
		EmbedDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Duration of single-item embed calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		UpsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upsert_duration_seconds",
			Help:      "Duration of vector store writes per batch in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Registry exposes the registry for gathering or pushing.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveEmbed records one embed call.
func (m *Metrics) ObserveEmbed(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.EmbedDuration.Observe(d.Seconds())
	if err != nil {
		m.EmbedErrors.Inc()
	}
}

// ObserveUpsert records one successful store write.
func (m *Metrics) ObserveUpsert(count int, d time.Duration) {
	if m == nil {
		return
	}
	m.VectorsUpserted.Add(float64(count))
	m.UpsertDuration.Observe(d.Seconds())
}

// BatchDelivered counts a batch handed to the sink.
func (m *Metrics) BatchDelivered() {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(ResultDelivered).Inc()
}

// BatchFailed counts a batch aborted by an embed failure.
func (m *Metrics) BatchFailed() {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(ResultFailed).Inc()
}

// ChunkProduced counts a chunk pulled from the source.
func (m *Metrics) ChunkProduced() {
	if m == nil {
		return
	}
	m.Chunks.Inc()
}

// Push sends the registry to a Prometheus Pushgateway under the given job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
