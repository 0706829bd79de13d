package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/newsembed/ai"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/metrics"
)

// BackendFactory builds the backend for a model identifier. It is called
// once, from Init.
type BackendFactory func(ctx context.Context, model string) (ai.Backend, error)

// Embedder wraps a shared embedding backend with id assignment, metadata
// defaults and error reporting. It must be initialized exactly once before
// use; Embed is safe for concurrent use afterwards.
type Embedder struct {
	factory BackendFactory
	retry   RetryPolicy
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	backend ai.Backend
	model   string
	closed  bool
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger.With("component", "embedder")
		}
	}
}

// WithRetryPolicy sets how backend construction is retried.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(e *Embedder) {
		e.retry = policy
	}
}

// WithIDGenerator replaces the random id source used when metadata has no id.
func WithIDGenerator(fn func() string) Option {
	return func(e *Embedder) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithMetrics records per-call latency and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Embedder) {
		e.metrics = m
	}
}

// New creates an uninitialized Embedder.
func New(factory BackendFactory, opts ...Option) (*Embedder, error) {
	if factory == nil {
		return nil, ErrBackendFactoryRequired
	}

	e := &Embedder{
		factory: factory,
		retry:   DefaultRetryPolicy(),
		newID:   uuid.NewString,
		logger:  slog.Default().With("component", "embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Init builds the backend for model. It succeeds at most once; later calls
// return ErrAlreadyInitialized and leave the running backend untouched.
func (e *Embedder) Init(ctx context.Context, model string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.backend != nil {
		return fmt.Errorf("%w with model %s", ErrAlreadyInitialized, e.model)
	}

	var backend ai.Backend
	err := RetryWithBackoff(ctx, e.logger, e.retry, func(ctx context.Context) error {
		var err error
		backend, err = e.factory(ctx, model)
		return err
	})
	if err != nil {
		return fmt.Errorf("initializing embedding backend %s: %w", model, err)
	}
	if backend == nil {
		return fmt.Errorf("initializing embedding backend %s: factory returned no backend", model)
	}

	e.backend = backend
	e.model = model
	e.logger.Info("embedding backend ready", "model", model, "dimension", backend.Dimension())
	return nil
}

// Initialized reports whether Init has completed.
func (e *Embedder) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend != nil
}

// Model returns the model passed to Init.
func (e *Embedder) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Dimension returns the backend's vector size, or 0 before Init.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.backend == nil {
		return 0
	}
	return e.backend.Dimension()
}

// Embed computes the vector for text.
//
// The id is metadata["id"] when present and a fresh UUID otherwise. The
// metadata is used as given; nil metadata becomes {"text": text}. Callers
// that re-run over the same data must supply ids, or every run writes new
// vectors instead of overwriting.
func (e *Embedder) Embed(ctx context.Context, text string, metadata core.Metadata) (core.EmbeddingVector, error) {
	e.mu.RLock()
	backend, closed := e.backend, e.closed
	e.mu.RUnlock()

	if closed {
		return core.EmbeddingVector{}, ErrClosed
	}
	if backend == nil {
		return core.EmbeddingVector{}, ErrNotInitialized
	}

	start := time.Now()
	values, err := backend.EmbedText(ctx, text)
	if err == nil {
		err = checkValues(values, backend.Dimension())
	}
	e.metrics.ObserveEmbed(time.Since(start), err)
	if err != nil {
		e.logger.Error("failed to embed text", "text", text, "err", err)
		return core.EmbeddingVector{}, &core.EmbeddingBackendError{Text: text, Cause: err}
	}

	id, ok := metadata.ID()
	if !ok {
		id = e.newID()
	}
	if metadata == nil {
		metadata = core.Metadata{core.MetadataTextKey: text}
	}

	return core.EmbeddingVector{ID: id, Values: values, Metadata: metadata}, nil
}

func checkValues(values []float32, dimension int) error {
	if len(values) == 0 {
		return ai.ErrEmptyEmbedding
	}
	if dimension > 0 && len(values) != dimension {
		return fmt.Errorf("%w: got %d, want %d", core.ErrDimensionMismatch, len(values), dimension)
	}
	return nil
}

// Close releases the backend. Afterwards Embed and Init return ErrClosed.
// Closing twice is a no-op.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	backend := e.backend
	e.backend = nil
	if backend == nil {
		return nil
	}
	return backend.Close()
}
