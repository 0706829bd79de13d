//go:build cgo

package fastembed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	fe "github.com/anush008/fastembed-go"
	"github.com/poiesic/newsembed/ai"
)

var modelMapping = map[string]fe.EmbeddingModel{
	"all-minilm-l6-v2":  fe.AllMiniLML6V2,
	"bge-small-en-v1.5": fe.BGESmallENV15,
	"bge-small-en":      fe.BGESmallEN,
	"bge-base-en-v1.5":  fe.BGEBaseENV15,
	"bge-base-en":       fe.BGEBaseEN,
}

var modelDimensions = map[fe.EmbeddingModel]int{
	fe.AllMiniLML6V2: 384,
	fe.BGESmallENV15: 384,
	fe.BGESmallEN:    384,
	fe.BGEBaseENV15:  768,
	fe.BGEBaseEN:     768,
}

// Embedder implements ai.Backend with a local ONNX model.
type Embedder struct {
	model     *fe.FlagEmbedding
	modelName string
	dimension int
	mu        sync.RWMutex
	logger    *slog.Logger
}

var _ ai.Backend = (*Embedder)(nil)

// NewBackend loads the configured model, downloading it into CacheDir on
// first use.
func NewBackend(config *ai.Config) (ai.Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	model, ok := modelMapping[canonicalModel(config.Model)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnsupportedModel, config.Model)
	}
	dimension := modelDimensions[model]
	if config.Dimension > 0 && config.Dimension != dimension {
		return nil, fmt.Errorf("model %s produces %d dimensions, configured %d", config.Model, dimension, config.Dimension)
	}

	cacheDir := config.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := config.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fe.NewFlagEmbedding(&fe.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed model %s: %w", config.Model, err)
	}

	return &Embedder{
		model:     flagEmbed,
		modelName: config.Model,
		dimension: dimension,
		logger:    slog.Default().With("component", "fastembed-embedder", "model", config.Model),
	}, nil
}

// EmbedText embeds one text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.model == nil {
		return nil, fmt.Errorf("fastembed model %s is closed", e.modelName)
	}
	vectors, err := e.model.Embed(texts, len(texts))
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}

// Dimension returns the model's vector size.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
