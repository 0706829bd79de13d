package embedding

import "errors"

var (
	// ErrNotInitialized is returned by Embed before Init has completed.
	ErrNotInitialized = errors.New("embedder not initialized")

	// ErrClosed is returned by Embed and Init after Close.
	ErrClosed = errors.New("embedder closed")

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("embedder already initialized")

	// ErrBackendFactoryRequired is returned when no backend factory is given.
	ErrBackendFactoryRequired = errors.New("backend factory required")

	// ErrEmbedderRequired is returned when a batcher has no embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrBatchFuncRequired is returned when no batch callback is given.
	ErrBatchFuncRequired = errors.New("batch callback required")

	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
