// Package milvus stores embedding vectors in Milvus.
//
// Each index is a collection with three fields: a VarChar primary key, the
// float vector and the metadata as JSON. Namespaces map to partitions, which
// are created on first use.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/storage"
)

// Schema field names.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldMetadata  = "metadata"
)

const (
	// DefaultBatchSize is the number of rows per upsert request.
	DefaultBatchSize = 500
	maxIDLength      = 512
)

// Config holds configuration for the Milvus client.
type Config struct {
	// Address is host:port of the Milvus proxy. Default: "localhost:19530".
	Address string
	// APIKey authenticates against managed deployments.
	APIKey string
	// BatchSize is the number of rows per upsert request. Default: 500.
	BatchSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "localhost:19530"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// milvusClient is the subset of the Milvus client the store uses.
type milvusClient interface {
	HasCollection(ctx context.Context, coll string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema) error
	CreateIndex(ctx context.Context, coll, field string, idx entity.Index) error
	LoadCollection(ctx context.Context, coll string) error
	ShowPartitions(ctx context.Context, coll string) ([]*entity.Partition, error)
	CreatePartition(ctx context.Context, coll, partition string) error
	Upsert(ctx context.Context, coll, partition string, columns ...entity.Column) error
	Flush(ctx context.Context, coll string) error
	Close() error
}

// sdkClient adapts client.Client to milvusClient with synchronous calls.
type sdkClient struct {
	c client.Client
}

func (a sdkClient) HasCollection(ctx context.Context, coll string) (bool, error) {
	return a.c.HasCollection(ctx, coll)
}

func (a sdkClient) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	return a.c.CreateCollection(ctx, schema, entity.DefaultShardNumber)
}

func (a sdkClient) CreateIndex(ctx context.Context, coll, field string, idx entity.Index) error {
	return a.c.CreateIndex(ctx, coll, field, idx, false)
}

func (a sdkClient) LoadCollection(ctx context.Context, coll string) error {
	return a.c.LoadCollection(ctx, coll, false)
}

func (a sdkClient) ShowPartitions(ctx context.Context, coll string) ([]*entity.Partition, error) {
	return a.c.ShowPartitions(ctx, coll)
}

func (a sdkClient) CreatePartition(ctx context.Context, coll, partition string) error {
	return a.c.CreatePartition(ctx, coll, partition)
}

func (a sdkClient) Upsert(ctx context.Context, coll, partition string, columns ...entity.Column) error {
	_, err := a.c.Upsert(ctx, coll, partition, columns...)
	return err
}

func (a sdkClient) Flush(ctx context.Context, coll string) error {
	return a.c.Flush(ctx, coll, false)
}

func (a sdkClient) Close() error {
	return a.c.Close()
}

// Store implements storage.Store on Milvus.
type Store struct {
	client    milvusClient
	batchSize int
	logger    *slog.Logger

	mu         sync.Mutex
	partitions map[string]bool
	written    map[string]bool
}

var _ storage.Store = (*Store)(nil)

// New connects to Milvus.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address, APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("connecting to milvus at %s: %w", cfg.Address, err)
	}
	return newStore(sdkClient{c: c}, cfg.BatchSize, logger), nil
}

func newStore(c milvusClient, batchSize int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{
		client:     c,
		batchSize:  batchSize,
		logger:     logger.With("component", "milvus-store"),
		partitions: make(map[string]bool),
		written:    make(map[string]bool),
	}
}

// EnsureIndex creates, indexes and loads the collection if it is missing.
func (s *Store) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if err := storage.ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dimension)
	}

	coll := collectionName(name)
	exists, err := s.client.HasCollection(ctx, coll)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", coll, err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, newSchema(coll, dimension)); err != nil {
			return fmt.Errorf("creating collection %s: %w", coll, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return err
		}
		if err := s.client.CreateIndex(ctx, coll, FieldEmbedding, idx); err != nil {
			return fmt.Errorf("indexing %s.%s: %w", coll, FieldEmbedding, err)
		}
		s.logger.Info("created collection", "collection", coll, "dimension", dimension)
	}

	if err := s.client.LoadCollection(ctx, coll); err != nil {
		return fmt.Errorf("loading collection %s: %w", coll, err)
	}
	return nil
}

// Upsert writes vectors into the namespace partition in requests of at most
// the configured batch size.
func (s *Store) Upsert(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := core.ValidateVectors(vectors, len(vectors[0].Values)); err != nil {
		return err
	}

	coll := collectionName(index)
	partition := partitionName(namespace)
	if err := s.ensurePartition(ctx, coll, partition); err != nil {
		return err
	}

	for _, chunk := range storage.Chunks(vectors, s.batchSize) {
		columns, err := toColumns(chunk)
		if err != nil {
			return err
		}
		if err := s.client.Upsert(ctx, coll, partition, columns...); err != nil {
			return fmt.Errorf("upserting %d rows to %s/%s: %w", len(chunk), coll, partition, err)
		}
	}

	s.mu.Lock()
	s.written[coll] = true
	s.mu.Unlock()
	return nil
}

// Close flushes every collection written to and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for coll := range s.written {
		if err := s.client.Flush(context.Background(), coll); err != nil {
			s.logger.Warn("flush failed", "collection", coll, "err", err)
		}
	}
	s.written = make(map[string]bool)
	return s.client.Close()
}

func (s *Store) ensurePartition(ctx context.Context, coll, partition string) error {
	key := coll + "/" + partition

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partitions[key] {
		return nil
	}

	existing, err := s.client.ShowPartitions(ctx, coll)
	if err != nil {
		return fmt.Errorf("listing partitions of %s: %w", coll, err)
	}
	found := false
	for _, p := range existing {
		if p.Name == partition {
			found = true
			break
		}
	}
	if !found {
		if err := s.client.CreatePartition(ctx, coll, partition); err != nil {
			return fmt.Errorf("creating partition %s of %s: %w", partition, coll, err)
		}
		s.logger.Info("created partition", "collection", coll, "partition", partition)
	}
	s.partitions[key] = true
	return nil
}

func newSchema(coll string, dimension int) *entity.Schema {
	return entity.NewSchema().
		WithName(coll).
		WithDescription("newsembed vectors").
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension))).
		WithField(entity.NewField().
			WithName(FieldMetadata).
			WithDataType(entity.FieldTypeJSON))
}

func toColumns(vectors []core.EmbeddingVector) ([]entity.Column, error) {
	ids := make([]string, len(vectors))
	embeddings := make([][]float32, len(vectors))
	metadata := make([][]byte, len(vectors))

	for i, v := range vectors {
		if len(v.ID) > maxIDLength {
			return nil, fmt.Errorf("vector id %.32q... exceeds %d bytes", v.ID, maxIDLength)
		}
		ids[i] = v.ID
		embeddings[i] = v.Values
		md, err := json.Marshal(v.Metadata)
		if err != nil {
			return nil, fmt.Errorf("vector %s metadata: %w", v.ID, err)
		}
		metadata[i] = md
	}

	return []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, len(vectors[0].Values), embeddings),
		entity.NewColumnJSONBytes(FieldMetadata, metadata),
	}, nil
}

// Milvus names allow letters, digits and underscores only.
func collectionName(index string) string {
	return strings.ReplaceAll(index, "-", "_")
}

func partitionName(namespace string) string {
	if namespace == "" {
		return "_default"
	}
	return strings.ReplaceAll(namespace, "-", "_")
}
