// Package ollama provides an embedding backend for the native Ollama API.
package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/poiesic/newsembed/ai"
)

// DefaultTimeout bounds a single embed request.
const DefaultTimeout = 120 * time.Second

// Embedder implements ai.Backend on top of the Ollama embed endpoint.
type Embedder struct {
	client    *ollama.Client
	model     string
	dimension int
	normalize bool
	logger    *slog.Logger
}

var _ ai.Backend = (*Embedder)(nil)

// NewBackend creates an Ollama backend from configuration.
func NewBackend(config *ai.Config) (ai.Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(config.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", config.Host, err)
	}

	return &Embedder{
		client:    ollama.NewClient(base, &http.Client{Timeout: DefaultTimeout}),
		model:     config.Model,
		dimension: config.Dimension,
		normalize: config.Normalize,
		logger:    slog.Default().With("component", "ollama-embedder"),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vectors[0], nil
}

// EmbedTexts generates embeddings for several texts in one request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) embed(ctx context.Context, input any) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: input,
	})
	if err != nil {
		e.logger.Error("failed to get embeddings from ollama", "model", e.model, "err", err)
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	vectors := resp.Embeddings
	if e.normalize {
		for i := range vectors {
			vectors[i] = ai.NormalizeVector(vectors[i])
		}
	}
	return vectors, nil
}

// Dimension returns the configured vector size.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}
