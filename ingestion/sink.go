package ingestion

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/metrics"
	"github.com/poiesic/newsembed/storage"
)

// Sink writes completed batches into one index and namespace of a store.
// Its Write method is the batcher's completion callback.
type Sink struct {
	store     storage.Store
	index     string
	namespace string
	progress  *ProgressTracker
	written   atomic.Int64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithSinkLogger sets a custom logger.
func WithSinkLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger.With("component", "sink")
		}
	}
}

// WithSinkMetrics records upserted vectors and write latency.
func WithSinkMetrics(m *metrics.Metrics) SinkOption {
	return func(s *Sink) {
		s.metrics = m
	}
}

// NewSink creates a Sink. progress may be nil.
func NewSink(store storage.Store, index, namespace string, progress *ProgressTracker, opts ...SinkOption) (*Sink, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if err := storage.ValidateIndexName(index); err != nil {
		return nil, err
	}

	s := &Sink{
		store:     store,
		index:     index,
		namespace: namespace,
		progress:  progress,
		logger:    slog.Default().With("component", "sink"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write upserts vectors. Splitting into request-sized sub-batches is left to
// the store. A rejected write is returned as *core.StoreWriteError and does
// not advance progress.
func (s *Sink) Write(ctx context.Context, vectors []core.EmbeddingVector) error {
	if len(vectors) == 0 {
		return nil
	}

	start := time.Now()
	if err := s.store.Upsert(ctx, s.index, vectors, s.namespace); err != nil {
		s.logger.Error("upsert failed", "index", s.index, "namespace", s.namespace, "count", len(vectors), "err", err)
		return &core.StoreWriteError{
			Index:     s.index,
			Namespace: s.namespace,
			Count:     len(vectors),
			Cause:     err,
		}
	}

	s.metrics.ObserveUpsert(len(vectors), time.Since(start))
	s.written.Add(int64(len(vectors)))
	s.progress.Increment(len(vectors))
	s.logger.Debug("upserted batch", "count", len(vectors))
	return nil
}

// Written returns the number of vectors accepted by the store so far.
func (s *Sink) Written() int {
	return int(s.written.Load())
}
