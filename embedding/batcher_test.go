package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeItemEmbedder is a hand-written ItemEmbedder that tracks concurrency.
type fakeItemEmbedder struct {
	EmbedFunc func(ctx context.Context, text string, metadata core.Metadata) (core.EmbeddingVector, error)

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeItemEmbedder) Embed(ctx context.Context, text string, metadata core.Metadata) (core.EmbeddingVector, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.EmbedFunc != nil {
		return f.EmbedFunc(ctx, text, metadata)
	}
	id, _ := metadata.ID()
	return core.EmbeddingVector{ID: id, Values: []float32{1}, Metadata: metadata}, nil
}

func makeDocs(n int) []core.Document {
	docs := make([]core.Document, n)
	for i := range docs {
		id := fmt.Sprintf("doc-%d", i)
		docs[i] = core.Document{PageContent: "text " + id, Metadata: core.Metadata{"id": id}}
	}
	return docs
}

func TestNewBatcher_RequiresEmbedder(t *testing.T) {
	_, err := NewBatcher(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestEmbedBatch_InvalidArguments(t *testing.T) {
	b, err := NewBatcher(&fakeItemEmbedder{})
	require.NoError(t, err)
	noop := func(context.Context, []core.EmbeddingVector) error { return nil }

	assert.ErrorIs(t, b.EmbedBatch(context.Background(), makeDocs(3), 0, noop), ErrInvalidBatchSize)
	assert.ErrorIs(t, b.EmbedBatch(context.Background(), makeDocs(3), -1, noop), ErrInvalidBatchSize)
	assert.ErrorIs(t, b.EmbedBatch(context.Background(), makeDocs(3), 2, nil), ErrBatchFuncRequired)
}

func TestEmbedBatch_Partitioning(t *testing.T) {
	tests := []struct {
		name      string
		docs      int
		batchSize int
		want      []int
	}{
		{"exact multiple", 10, 5, []int{5, 5}},
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"single batch", 4, 10, []int{4}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
		{"empty", 0, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBatcher(&fakeItemEmbedder{})
			require.NoError(t, err)

			var sizes []int
			err = b.EmbedBatch(context.Background(), makeDocs(tt.docs), tt.batchSize,
				func(ctx context.Context, vectors []core.EmbeddingVector) error {
					sizes = append(sizes, len(vectors))
					return nil
				})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestEmbedBatch_PreservesInputOrder(t *testing.T) {
	// Later items finish first.
	fake := &fakeItemEmbedder{
		EmbedFunc: func(ctx context.Context, text string, md core.Metadata) (core.EmbeddingVector, error) {
			var i int
			fmt.Sscanf(text, "text doc-%d", &i)
			time.Sleep(time.Duration(10-i%5) * time.Millisecond)
			id, _ := md.ID()
			return core.EmbeddingVector{ID: id, Values: []float32{float32(i)}, Metadata: md}, nil
		},
	}
	b, err := NewBatcher(fake)
	require.NoError(t, err)

	var ids []string
	err = b.EmbedBatch(context.Background(), makeDocs(10), 5, func(ctx context.Context, vectors []core.EmbeddingVector) error {
		for _, v := range vectors {
			ids = append(ids, v.ID)
		}
		return nil
	})
	require.NoError(t, err)

	want := make([]string, 10)
	for i := range want {
		want[i] = fmt.Sprintf("doc-%d", i)
	}
	assert.Equal(t, want, ids)
}

func TestEmbedBatch_ConcurrencyBound(t *testing.T) {
	fake := &fakeItemEmbedder{
		EmbedFunc: func(ctx context.Context, text string, md core.Metadata) (core.EmbeddingVector, error) {
			time.Sleep(5 * time.Millisecond)
			return core.EmbeddingVector{ID: text, Values: []float32{1}, Metadata: md}, nil
		},
	}
	b, err := NewBatcher(fake)
	require.NoError(t, err)

	err = b.EmbedBatch(context.Background(), makeDocs(24), 4, func(context.Context, []core.EmbeddingVector) error {
		assert.Equal(t, int32(0), fake.inFlight.Load(), "no embedding runs while the callback runs")
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, fake.peak.Load(), int32(4))
	assert.Equal(t, int32(24), fake.calls.Load())
}

func TestEmbedBatch_FailFast(t *testing.T) {
	boom := errors.New("backend down")
	release := make(chan struct{})
	defer close(release)

	fake := &fakeItemEmbedder{
		EmbedFunc: func(ctx context.Context, text string, md core.Metadata) (core.EmbeddingVector, error) {
			if text == "text doc-6" {
				return core.EmbeddingVector{}, boom
			}
			id, _ := md.ID()
			if id >= "doc-4" {
				// Siblings in the failing batch block until the test ends.
				select {
				case <-release:
				case <-ctx.Done():
				}
			}
			return core.EmbeddingVector{ID: id, Values: []float32{1}, Metadata: md}, nil
		},
	}
	m := metrics.New()
	b, err := NewBatcher(fake, WithBatcherMetrics(m))
	require.NoError(t, err)

	var delivered [][]core.EmbeddingVector
	done := make(chan error, 1)
	go func() {
		done <- b.EmbedBatch(context.Background(), makeDocs(12), 4, func(ctx context.Context, vectors []core.EmbeddingVector) error {
			delivered = append(delivered, vectors)
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("batcher waited for the failing batch's siblings")
	}

	require.Len(t, delivered, 1, "only the batch before the failure is delivered")
	assert.Equal(t, "doc-0", delivered[0][0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("failed")))
}

func TestEmbedBatch_CallbackError(t *testing.T) {
	sinkErr := errors.New("store unavailable")
	b, err := NewBatcher(&fakeItemEmbedder{})
	require.NoError(t, err)

	calls := 0
	err = b.EmbedBatch(context.Background(), makeDocs(9), 3, func(context.Context, []core.EmbeddingVector) error {
		calls++
		if calls == 2 {
			return sinkErr
		}
		return nil
	})
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 2, calls, "no batches after a failed callback")
}

func TestEmbedBatch_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b, err := NewBatcher(&fakeItemEmbedder{})
	require.NoError(t, err)

	calls := 0
	err = b.EmbedBatch(ctx, makeDocs(6), 2, func(context.Context, []core.EmbeddingVector) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestEmbedBatch_RecoversPanics(t *testing.T) {
	fake := &fakeItemEmbedder{
		EmbedFunc: func(ctx context.Context, text string, md core.Metadata) (core.EmbeddingVector, error) {
			panic("corrupt model state")
		},
	}
	b, err := NewBatcher(fake)
	require.NoError(t, err)

	err = b.EmbedBatch(context.Background(), makeDocs(2), 2, func(context.Context, []core.EmbeddingVector) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt model state")
}

func TestEmbedStrings(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	fake := &fakeItemEmbedder{
		EmbedFunc: func(ctx context.Context, text string, md core.Metadata) (core.EmbeddingVector, error) {
			mu.Lock()
			seen[text] = md == nil
			mu.Unlock()
			return core.EmbeddingVector{ID: text, Values: []float32{1}, Metadata: core.Metadata{"text": text}}, nil
		},
	}
	b, err := NewBatcher(fake)
	require.NoError(t, err)

	var got []string
	err = b.EmbedStrings(context.Background(), []string{"a", "b", "c"}, 2, func(ctx context.Context, vectors []core.EmbeddingVector) error {
		for _, v := range vectors {
			got = append(got, v.Metadata["text"].(string))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen, "strings carry no metadata")
}
