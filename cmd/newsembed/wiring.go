package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/poiesic/newsembed/ai"
	"github.com/poiesic/newsembed/ai/fastembed"
	"github.com/poiesic/newsembed/ai/mock"
	"github.com/poiesic/newsembed/ai/ollama"
	"github.com/poiesic/newsembed/ai/openai"
	"github.com/poiesic/newsembed/config"
	"github.com/poiesic/newsembed/embedding"
	"github.com/poiesic/newsembed/storage"
	"github.com/poiesic/newsembed/storage/badger"
	"github.com/poiesic/newsembed/storage/chromem"
	"github.com/poiesic/newsembed/storage/milvus"
	"github.com/poiesic/newsembed/storage/qdrant"
)

// aiConfig translates the embedding settings into a validated ai.Config.
func aiConfig(cfg config.EmbeddingConfig, dimension int) (*ai.Config, error) {
	c := ai.NewConfig(
		ai.WithBackend(ai.BackendKind(cfg.Backend)),
		ai.WithModel(cfg.Model),
		ai.WithHost(cfg.Host),
		ai.WithCacheDir(cfg.CacheDir),
		ai.WithDimension(dimension),
	)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}
	return c, nil
}

// backendFactory returns the factory the embedder retries during Init.
func backendFactory(base *ai.Config) embedding.BackendFactory {
	return func(ctx context.Context, model string) (ai.Backend, error) {
		c := *base
		c.Model = model
		return newBackend(&c)
	}
}

func newBackend(cfg *ai.Config) (ai.Backend, error) {
	switch cfg.Backend {
	case ai.BackendFastEmbed:
		return fastembed.NewBackend(cfg)
	case ai.BackendOpenAI:
		return openai.NewBackend(cfg)
	case ai.BackendOllama:
		return ollama.NewBackend(cfg)
	case ai.BackendMock:
		return mock.NewBackend(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ai.ErrUnknownBackend, cfg.Backend)
	}
}

// openStore constructs the configured vector store.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Kind {
	case config.StoreQdrant:
		return qdrant.New(qdrant.Config{
			Host:      cfg.Host,
			Port:      cfg.Port,
			APIKey:    cfg.APIKey,
			UseTLS:    cfg.TLS,
			BatchSize: cfg.UpsertBatch,
		}, logger)
	case config.StoreMilvus:
		return milvus.New(ctx, milvus.Config{
			Address:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			APIKey:    cfg.APIKey,
			BatchSize: cfg.UpsertBatch,
		}, logger)
	case config.StoreChromem:
		return chromem.New(chromem.Config{
			Path:      cfg.Path,
			BatchSize: cfg.UpsertBatch,
		}, logger)
	case config.StoreBadger:
		opts := []badger.Option{badger.WithBatchSize(cfg.UpsertBatch), badger.WithLogger(logger)}
		if cfg.Path == "" {
			return badger.NewMemoryStore(opts...)
		}
		return badger.OpenStore(cfg.Path, opts...)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
