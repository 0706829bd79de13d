package ai

import "errors"

var (
	// ErrUnknownBackend is returned for a backend kind with no implementation.
	ErrUnknownBackend = errors.New("unknown embedding backend")

	// ErrBackendUnavailable is returned when a backend cannot run in this build.
	ErrBackendUnavailable = errors.New("embedding backend not available in this build")

	// ErrUnsupportedModel is returned when a backend does not know the model.
	ErrUnsupportedModel = errors.New("unsupported embedding model")

	// ErrEmptyEmbedding is returned when a backend answers without a vector.
	ErrEmptyEmbedding = errors.New("backend returned no embedding")
)
