package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/newsembed/embedding"
	"github.com/poiesic/newsembed/metrics"
)

// Pipeline drives the producer, batcher and sink of one run.
type Pipeline struct {
	producer  *ChunkProducer
	batcher   *embedding.Batcher
	sink      *Sink
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// WithMetrics counts the chunks pulled from the producer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// NewPipeline creates a pipeline that embeds each chunk of producer in
// batches of batchSize and hands every batch to sink.
func NewPipeline(producer *ChunkProducer, batcher *embedding.Batcher, sink *Sink, batchSize int, opts ...Option) (*Pipeline, error) {
	if producer == nil {
		return nil, ErrProducerRequired
	}
	if batcher == nil {
		return nil, ErrBatcherRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}
	if batchSize <= 0 {
		return nil, embedding.ErrInvalidBatchSize
	}
	if batchSize > producer.ChunkSize() {
		return nil, ErrBatchExceedsChunk
	}

	p := &Pipeline{
		producer:  producer,
		batcher:   batcher,
		sink:      sink,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Run processes chunks until the producer is exhausted or a step fails. It
// returns the number of vectors written during this run, which on failure
// counts the batches delivered before it.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	before := p.sink.Written()
	written := func() int { return p.sink.Written() - before }

	for p.producer.HasNext() {
		offset := p.producer.Offset()
		docs, err := p.producer.Next(ctx)
		if err != nil {
			p.logger.Error("reading chunk failed", "offset", offset, "err", err)
			return written(), err
		}
		p.metrics.ChunkProduced()

		if err := p.batcher.EmbedBatch(ctx, docs, p.batchSize, p.sink.Write); err != nil {
			return written(), err
		}
		p.logger.Debug("chunk done", "offset", offset, "documents", len(docs))
	}
	return written(), nil
}
