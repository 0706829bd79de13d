package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/poiesic/newsembed/ai"
)

// MockEmbedder is a test double for ai.Backend.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// Dim is the size of generated vectors. Defaults to ai.DefaultDimension.
	Dim int

	callCount atomic.Int64
	closed    atomic.Bool
}

var _ ai.Backend = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: ai.DefaultDimension}
}

// NewBackend builds a mock backend from configuration.
func NewBackend(cfg *ai.Config) (ai.Backend, error) {
	m := NewMockEmbedder()
	if cfg != nil && cfg.Dimension > 0 {
		m.Dim = cfg.Dimension
	}
	return m, nil
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return GenerateDeterministicVector(text, m.dimension()), nil
}

// EmbedTexts embeds each text in order.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = v
	}
	return embeddings, nil
}

// Dimension returns the size of generated vectors.
func (m *MockEmbedder) Dimension() int {
	return m.dimension()
}

// Close marks the mock as closed.
func (m *MockEmbedder) Close() error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (m *MockEmbedder) Closed() bool {
	return m.closed.Load()
}

// CallCount returns the number of EmbedText calls.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
}

func (m *MockEmbedder) dimension() int {
	if m.Dim <= 0 {
		return ai.DefaultDimension
	}
	return m.Dim
}

// GenerateDeterministicVector creates a unit-length vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func GenerateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return ai.NormalizeVector(vector)
}
