package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/metrics"
)

// ItemEmbedder embeds a single text. *Embedder implements it.
type ItemEmbedder interface {
	Embed(ctx context.Context, text string, metadata core.Metadata) (core.EmbeddingVector, error)
}

// BatchFunc receives each completed batch in input order. The batcher waits
// for it to return before starting the next batch.
type BatchFunc func(ctx context.Context, vectors []core.EmbeddingVector) error

// Batcher drives an ItemEmbedder over a sequence of documents, one batch at
// a time, with every item of a batch embedded concurrently.
type Batcher struct {
	embedder ItemEmbedder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithBatcherLogger sets a custom logger.
func WithBatcherLogger(logger *slog.Logger) BatcherOption {
	return func(b *Batcher) {
		if logger != nil {
			b.logger = logger.With("component", "batcher")
		}
	}
}

// WithBatcherMetrics counts delivered and failed batches.
func WithBatcherMetrics(m *metrics.Metrics) BatcherOption {
	return func(b *Batcher) {
		b.metrics = m
	}
}

// NewBatcher creates a Batcher around embedder.
func NewBatcher(embedder ItemEmbedder, opts ...BatcherOption) (*Batcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &Batcher{
		embedder: embedder,
		logger:   slog.Default().With("component", "batcher"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// EmbedBatch partitions docs into consecutive batches of at most batchSize
// and, for each batch in order:
//   - embeds every document concurrently, at most batchSize in flight
//   - on the first failure returns that error without waiting for the rest
//     of the batch; onDone is not called for it
//   - otherwise calls onDone with the vectors in input order and waits for it
//
// Batches delivered before a failure stay delivered.
func (b *Batcher) EmbedBatch(ctx context.Context, docs []core.Document, batchSize int, onDone BatchFunc) error {
	if batchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if onDone == nil {
		return ErrBatchFuncRequired
	}
	if len(docs) == 0 {
		return nil
	}

	pool, err := ants.NewPool(batchSize)
	if err != nil {
		return fmt.Errorf("creating embed pool: %w", err)
	}
	defer pool.Release()

	for start := 0; start < len(docs); start += batchSize {
		group := docs[start:min(start+batchSize, len(docs))]

		vectors, err := b.embedGroup(ctx, pool, group)
		if err != nil {
			b.metrics.BatchFailed()
			b.logger.Error("batch failed", "offset", start, "size", len(group), "err", err)
			return err
		}

		b.metrics.BatchDelivered()
		if err := onDone(ctx, vectors); err != nil {
			return err
		}
	}
	return nil
}

// EmbedStrings embeds bare strings. Each resulting vector carries
// {"text": s} as its metadata and a generated id.
func (b *Batcher) EmbedStrings(ctx context.Context, texts []string, batchSize int, onDone BatchFunc) error {
	docs := make([]core.Document, len(texts))
	for i, text := range texts {
		docs[i] = core.Document{PageContent: text}
	}
	return b.EmbedBatch(ctx, docs, batchSize, onDone)
}

type itemResult struct {
	index  int
	vector core.EmbeddingVector
	err    error
}

// embedGroup fans the group out over the pool and joins on the results.
// On the first error it cancels the group context and returns; in-flight
// calls finish in the background and their results are dropped.
func (b *Batcher) embedGroup(ctx context.Context, pool *ants.Pool, group []core.Document) ([]core.EmbeddingVector, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan itemResult, len(group))
	for i, doc := range group {
		err := pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					results <- itemResult{index: i, err: fmt.Errorf("embed panicked: %v", r)}
				}
			}()
			if err := ctx.Err(); err != nil {
				results <- itemResult{index: i, err: err}
				return
			}
			v, err := b.embedder.Embed(ctx, doc.PageContent, doc.Metadata)
			results <- itemResult{index: i, vector: v, err: err}
		})
		if err != nil {
			return nil, fmt.Errorf("submitting embed task: %w", err)
		}
	}

	vectors := make([]core.EmbeddingVector, len(group))
	for range group {
		select {
		case r := <-results:
			if r.err != nil {
				return nil, r.err
			}
			vectors[r.index] = r.vector
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return vectors, nil
}
