// Package chromem stores embedding vectors in an embedded chromem-go database.
//
// Every (index, namespace) pair is one chromem collection named
// "<index>.<namespace>". Metadata values are stored as strings. With a path
// the database is persisted to disk; without one it lives in memory.
// Index dimensions are not persisted: EnsureIndex must be called after every
// open before writing.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/storage"
)

// ErrTextQuery is returned by the collection embedding function: the store
// only accepts precomputed embeddings.
var ErrTextQuery = errors.New("chromem store requires precomputed embeddings")

const metaDimension = "dimension"

// Config holds configuration for the chromem store.
type Config struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string
	// Compress gzips persisted documents.
	Compress bool
	// BatchSize is the number of documents added per call. Default: 100.
	BatchSize int
	// Concurrency bounds parallel document inserts. Default: 1.
	Concurrency int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = storage.DefaultUpsertBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
}

// Store implements storage.Store and storage.Querier on chromem-go.
type Store struct {
	db     *chromem.DB
	config Config
	logger *slog.Logger

	mu         sync.RWMutex
	dimensions map[string]int
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Querier = (*Store)(nil)
)

// New opens the database described by cfg.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	return &Store{
		db:         db,
		config:     cfg,
		logger:     logger.With("component", "chromem-store"),
		dimensions: make(map[string]int),
	}, nil
}

func embeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrTextQuery
}

// EnsureIndex records the dimension of index. Collections are created per
// namespace on first write.
func (s *Store) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if err := storage.ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.dimensions[name]; ok && existing != dimension {
		return fmt.Errorf("index %s: %w: has %d, want %d", name, core.ErrDimensionMismatch, existing, dimension)
	}
	s.dimensions[name] = dimension
	return nil
}

// Upsert adds vectors to the namespace collection, replacing documents with
// the same id.
func (s *Store) Upsert(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error {
	if err := storage.ValidateIndexName(namespace); err != nil {
		return err
	}
	s.mu.RLock()
	dimension, ok := s.dimensions[index]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("index %s: %w", index, storage.ErrNotFound)
	}
	if err := core.ValidateVectors(vectors, dimension); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	collection, err := s.db.GetOrCreateCollection(collectionName(index, namespace), map[string]string{
		"index":       index,
		"namespace":   namespace,
		metaDimension: strconv.Itoa(dimension),
	}, embeddingFunc)
	if err != nil {
		return fmt.Errorf("getting/creating collection for %s/%s: %w", index, namespace, err)
	}

	for _, chunk := range storage.Chunks(vectors, s.config.BatchSize) {
		docs := make([]chromem.Document, len(chunk))
		for i, v := range chunk {
			docs[i] = chromem.Document{
				ID:        v.ID,
				Metadata:  convertMetadataToString(v.Metadata),
				Embedding: v.Values,
				Content:   content(v.Metadata),
			}
		}
		if err := collection.AddDocuments(ctx, docs, s.config.Concurrency); err != nil {
			return fmt.Errorf("adding documents: %w", err)
		}
	}

	s.logger.Debug("added documents", "index", index, "namespace", namespace, "count", len(vectors))
	return nil
}

// Count returns the number of documents in namespace of index.
func (s *Store) Count(ctx context.Context, index, namespace string) (int, error) {
	collection := s.db.GetCollection(collectionName(index, namespace), embeddingFunc)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Query returns up to k documents most similar to vector.
func (s *Store) Query(ctx context.Context, index, namespace string, vector []float32, k int) ([]storage.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	collection := s.db.GetCollection(collectionName(index, namespace), embeddingFunc)
	if collection == nil {
		return nil, nil
	}

	// chromem requires nResults <= doc count
	k = min(k, collection.Count())
	if k == 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s/%s: %w", index, namespace, err)
	}

	matches := make([]storage.Match, len(results))
	for i, r := range results {
		matches[i] = storage.Match{
			Vector: core.EmbeddingVector{
				ID:       r.ID,
				Values:   r.Embedding,
				Metadata: convertMetadataFromString(r.Metadata),
			},
			Score: r.Similarity,
		}
	}
	return matches, nil
}

// Close is a no-op: persisted documents are written on insert.
func (s *Store) Close() error {
	s.logger.Debug("chromem store closed")
	return nil
}

// collectionName joins index and namespace with a separator that
// storage.ValidateIndexName rejects, so distinct pairs never collide.
func collectionName(index, namespace string) string {
	return index + "." + namespace
}

// content picks the document text stored alongside the embedding.
func content(md core.Metadata) string {
	for _, key := range []string{core.MetadataTextKey, "article"} {
		if s, ok := md[key].(string); ok {
			return s
		}
	}
	return ""
}

// convertMetadataToString converts metadata values to strings.
func convertMetadataToString(metadata core.Metadata) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int64:
			result[k] = strconv.FormatInt(val, 10)
		case float64:
			result[k] = strconv.FormatFloat(val, 'g', -1, 64)
		case bool:
			result[k] = strconv.FormatBool(val)
		default:
			result[k] = fmt.Sprint(val)
		}
	}
	return result
}

func convertMetadataFromString(metadata map[string]string) core.Metadata {
	if metadata == nil {
		return nil
	}
	result := make(core.Metadata, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}
