package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend is a long-lived embedding model. It is constructed once, shared by
// every concurrent embed call of a run, and closed when the run ends.
type Backend interface {
	Embedder

	// Dimension returns the size of the vectors the backend produces, or 0
	// if it is only known after the first call.
	Dimension() int

	// Close releases the model and any connections.
	Close() error
}
