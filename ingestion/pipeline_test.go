package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/newsembed/ai"
	"github.com/poiesic/newsembed/ai/mock"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/embedding"
	"github.com/poiesic/newsembed/metrics"
	"github.com/poiesic/newsembed/storage/badger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource serves rows from memory.
type sliceSource []core.Row

func (s sliceSource) Len() int { return len(s) }

func (s sliceSource) Slice(start, size int) []core.Row {
	if start >= len(s) {
		return nil
	}
	return s[start:min(start+size, len(s))]
}

func rowID(i int) string { return fmt.Sprintf("row-%d", i) }

func articleText(i int) string { return fmt.Sprintf("article %d", i) }

func newsRows(n int) []core.Row {
	rows := make([]core.Row, n)
	for i := range rows {
		rows[i] = core.Row{Index: i, Fields: map[string]any{
			"id":          rowID(i),
			"title":       fmt.Sprintf("title %d", i),
			"section":     "world",
			"publication": "Reuters",
			"article":     articleText(i),
		}}
	}
	return rows
}

type upsertCall struct {
	index     string
	namespace string
	vectors   []core.EmbeddingVector
}

// fakeStore records upserts. It implements storage.Store.
type fakeStore struct {
	UpsertFunc func(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error

	mu    sync.Mutex
	calls []upsertCall
}

func (f *fakeStore) EnsureIndex(ctx context.Context, name string, dimension int) error {
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error {
	f.mu.Lock()
	f.calls = append(f.calls, upsertCall{index: index, namespace: namespace, vectors: vectors})
	f.mu.Unlock()
	if f.UpsertFunc != nil {
		return f.UpsertFunc(ctx, index, vectors, namespace)
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Calls() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upsertCall(nil), f.calls...)
}

func newTestEmbedder(t *testing.T, backend ai.Backend) *embedding.Embedder {
	t.Helper()
	e, err := embedding.New(func(context.Context, string) (ai.Backend, error) {
		return backend, nil
	})
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background(), "mock"))
	t.Cleanup(func() { e.Close() })
	return e
}

type pipelineFixture struct {
	pipeline *Pipeline
	producer *ChunkProducer
	sink     *Sink
	progress *ProgressTracker
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, rows []core.Row, chunkSize, batchSize int, backend ai.Backend, store *fakeStore) pipelineFixture {
	t.Helper()
	m := metrics.New()
	progress := NewProgressTracker(nil, len(rows), 0)
	progress.Start()

	producer := newTestProducer(t, rows, chunkSize)
	batcher, err := embedding.NewBatcher(newTestEmbedder(t, backend), embedding.WithBatcherMetrics(m))
	require.NoError(t, err)
	sink, err := NewSink(store, "news", "default", progress, WithSinkMetrics(m))
	require.NoError(t, err)
	p, err := NewPipeline(producer, batcher, sink, batchSize, WithMetrics(m))
	require.NoError(t, err)

	return pipelineFixture{pipeline: p, producer: producer, sink: sink, progress: progress, metrics: m}
}

func TestNewPipeline_Validation(t *testing.T) {
	producer := newTestProducer(t, newsRows(5), 10)
	batcher, err := embedding.NewBatcher(newTestEmbedder(t, mock.NewMockEmbedder()))
	require.NoError(t, err)
	sink, err := NewSink(&fakeStore{}, "news", "default", nil)
	require.NoError(t, err)

	_, err = NewPipeline(nil, batcher, sink, 5)
	assert.ErrorIs(t, err, ErrProducerRequired)
	_, err = NewPipeline(producer, nil, sink, 5)
	assert.ErrorIs(t, err, ErrBatcherRequired)
	_, err = NewPipeline(producer, batcher, nil, 5)
	assert.ErrorIs(t, err, ErrSinkRequired)
	_, err = NewPipeline(producer, batcher, sink, 0)
	assert.ErrorIs(t, err, embedding.ErrInvalidBatchSize)
	_, err = NewPipeline(producer, batcher, sink, 11)
	assert.ErrorIs(t, err, ErrBatchExceedsChunk)

	_, err = NewPipeline(producer, batcher, sink, 10, func(*Pipeline) error { return errors.New("bad option") })
	assert.Error(t, err)
}

func TestPipeline_ChunksAndBatches(t *testing.T) {
	store := &fakeStore{}
	f := newFixture(t, newsRows(25), 10, 5, mock.NewMockEmbedder(), store)

	n, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	calls := store.Calls()
	require.Len(t, calls, 5)
	var ids []string
	for _, call := range calls {
		assert.Len(t, call.vectors, 5)
		for _, v := range call.vectors {
			ids = append(ids, v.ID)
		}
	}
	for i, id := range ids {
		assert.Equal(t, rowID(i), id, "vectors arrive in row order")
	}

	assert.Equal(t, 25, f.progress.Current())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Chunks))
	assert.Equal(t, 25.0, testutil.ToFloat64(f.metrics.VectorsUpserted))
	assert.False(t, f.producer.HasNext())
}

func TestPipeline_SchemaError(t *testing.T) {
	rows := newsRows(25)
	delete(rows[12].Fields, "article")
	store := &fakeStore{}
	f := newFixture(t, rows, 10, 5, mock.NewMockEmbedder(), store)

	n, err := f.pipeline.Run(context.Background())

	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "article", schemaErr.Field)
	assert.Equal(t, 12, schemaErr.Row)
	assert.Equal(t, 10, n, "first chunk stays written")
	assert.Len(t, store.Calls(), 2)
}

func TestPipeline_ExplicitID(t *testing.T) {
	rows := newsRows(1)
	rows[0].Fields["id"] = "row-42"
	store := &fakeStore{}
	f := newFixture(t, rows, 10, 5, mock.NewMockEmbedder(), store)

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	calls := store.Calls()
	require.Len(t, calls, 1)
	v := calls[0].vectors[0]
	assert.Equal(t, "row-42", v.ID)
	assert.Equal(t, "row-42", v.Metadata["id"])
	assert.Equal(t, "title 0", v.Metadata["title"])
}

func TestPipeline_EmbedFailureStopsRun(t *testing.T) {
	boom := errors.New("model crashed")
	backend := mock.NewMockEmbedder()
	backend.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == articleText(17) {
			return nil, boom
		}
		return mock.GenerateDeterministicVector(text, ai.DefaultDimension), nil
	}
	store := &fakeStore{}
	f := newFixture(t, newsRows(25), 10, 5, backend, store)

	n, err := f.pipeline.Run(context.Background())

	var backendErr *core.EmbeddingBackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, articleText(17), backendErr.Text)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 15, n, "batches before the failure stay written")
	assert.Len(t, store.Calls(), 3)
	assert.Equal(t, 15, f.progress.Current())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Batches.WithLabelValues(metrics.ResultFailed)))
}

func TestPipeline_StoreFailureStopsRun(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	store := &fakeStore{UpsertFunc: func(context.Context, string, []core.EmbeddingVector, string) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}}
	f := newFixture(t, newsRows(25), 10, 5, mock.NewMockEmbedder(), store)

	n, err := f.pipeline.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreWrite)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, n)
	assert.Len(t, store.Calls(), 2)
}

func TestPipeline_EmptySource(t *testing.T) {
	store := &fakeStore{}
	f := newFixture(t, nil, 10, 5, mock.NewMockEmbedder(), store)

	n, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.Calls())
}

func TestPipeline_StoredVectorsMatchSource(t *testing.T) {
	ctx := context.Background()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureIndex(ctx, "news", ai.DefaultDimension))

	rows := newsRows(12)
	a, err := NewAssembler(testMetadataFields, "article", WithIDField("id"))
	require.NoError(t, err)
	producer, err := NewChunkProducer(sliceSource(rows), 5, a)
	require.NoError(t, err)
	batcher, err := embedding.NewBatcher(newTestEmbedder(t, mock.NewMockEmbedder()))
	require.NoError(t, err)
	sink, err := NewSink(store, "news", "default", nil)
	require.NoError(t, err)
	p, err := NewPipeline(producer, batcher, sink, 3)
	require.NoError(t, err)

	n, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	count, err := store.Count(ctx, "news", "default")
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	query := mock.GenerateDeterministicVector(articleText(7), ai.DefaultDimension)
	matches, err := store.Query(ctx, "news", "default", query, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, rowID(7), matches[0].Vector.ID)
	assert.Equal(t, "title 7", matches[0].Vector.Metadata["title"])
	assert.Equal(t, articleText(7), matches[0].Vector.Metadata["article"])
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-5)
}
