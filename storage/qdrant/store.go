// Package qdrant stores embedding vectors in a Qdrant collection over gRPC.
//
// Each index is a collection with cosine distance. Namespaces are a payload
// field; point ids are derived from the namespace and vector id so that
// repeated upserts of the same id overwrite.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/storage"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Payload keys added to every point.
const (
	PayloadID        = "_id"
	PayloadNamespace = "_namespace"
)

// Config holds configuration for the Qdrant gRPC client.
type Config struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string
	// Port is the gRPC port (not the 6333 REST port). Default: 6334.
	Port int
	// APIKey authenticates against managed deployments.
	APIKey string
	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool
	// BatchSize is the number of points per upsert request. Default: 100.
	BatchSize int
	// MaxMessageSize bounds gRPC messages in bytes. Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.BatchSize <= 0 {
		c.BatchSize = storage.DefaultUpsertBatchSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// client is the subset of *qdrant.Client the store uses.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

// Store implements storage.Store on Qdrant.
type Store struct {
	client    client
	batchSize int
	logger    *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New connects to Qdrant.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC connection is not encrypted", "host", cfg.Host)
	}

	return newStore(c, cfg.BatchSize, logger), nil
}

func newStore(c client, batchSize int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:    c,
		batchSize: batchSize,
		logger:    logger.With("component", "qdrant-store"),
	}
}

// EnsureIndex creates the collection with cosine distance if it is missing.
func (s *Store) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if err := storage.ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dimension)
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.logger.Info("created collection", "collection", name, "dimension", dimension)
	return nil
}

// Upsert writes vectors in requests of at most the configured batch size and
// waits for each to be applied.
func (s *Store) Upsert(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error {
	if err := core.ValidateVectors(vectors, 0); err != nil {
		return err
	}

	for _, chunk := range storage.Chunks(vectors, s.batchSize) {
		points, err := toPoints(chunk, namespace)
		if err != nil {
			return err
		}
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: index,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting %d points to %s: %w", len(points), index, translateError(err))
		}
	}
	return nil
}

// Count returns the exact number of points in namespace of index.
func (s *Store) Count(ctx context.Context, index, namespace string) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: index,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeyword(PayloadNamespace, namespace)},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", index, translateError(err))
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// PointID derives the Qdrant point UUID for a vector id in a namespace.
func PointID(namespace, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+id)).String()
}

func toPoints(vectors []core.EmbeddingVector, namespace string) ([]*qdrant.PointStruct, error) {
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		payload := make(map[string]any, len(v.Metadata)+2)
		maps.Copy(payload, v.Metadata)
		payload[PayloadID] = v.ID
		payload[PayloadNamespace] = namespace

		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return nil, fmt.Errorf("vector %s payload: %w", v.ID, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(namespace, v.ID)),
			Vectors: qdrant.NewVectorsDense(v.Values),
			Payload: values,
		}
	}
	return points, nil
}

// translateError maps gRPC status codes onto storage errors.
func translateError(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	return err
}
