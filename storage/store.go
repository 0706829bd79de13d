package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/poiesic/newsembed/core"
)

// DefaultUpsertBatchSize is the sub-batch size used when a store is not
// configured with its own.
const DefaultUpsertBatchSize = 100

// Store accepts embedding vectors for a named index.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// EnsureIndex creates the index with the given dimension if it does not
	// exist. Calling it for an existing index is a no-op.
	EnsureIndex(ctx context.Context, name string, dimension int) error

	// Upsert writes vectors into namespace of index, replacing any vector
	// with the same id. The store splits the write into its own sub-batches.
	Upsert(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// Match is a single query hit.
type Match struct {
	Vector core.EmbeddingVector
	Score  float32
}

// Querier reads vectors back from a store.
type Querier interface {
	// Count returns the number of vectors in namespace of index.
	Count(ctx context.Context, index, namespace string) (int, error)

	// Query returns up to k vectors most similar to vector, best first.
	Query(ctx context.Context, index, namespace string, vector []float32, k int) ([]Match, error)
}

var indexNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateIndexName checks an index or namespace name.
// Pattern: ^[a-z0-9_-]{1,64}$
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidIndexName)
	}
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: name must match pattern ^[a-z0-9_-]{1,64}$, got %q", ErrInvalidIndexName, name)
	}
	return nil
}

// Chunks splits vectors into consecutive slices of at most size elements.
// The slices share the backing array of vectors. A size of zero or less
// uses DefaultUpsertBatchSize.
func Chunks(vectors []core.EmbeddingVector, size int) [][]core.EmbeddingVector {
	if size <= 0 {
		size = DefaultUpsertBatchSize
	}
	if len(vectors) == 0 {
		return nil
	}

	chunks := make([][]core.EmbeddingVector, 0, (len(vectors)+size-1)/size)
	for start := 0; start < len(vectors); start += size {
		end := min(start+size, len(vectors))
		chunks = append(chunks, vectors[start:end:end])
	}
	return chunks
}
