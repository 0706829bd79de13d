// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// BackendKind selects the embedding backend implementation.
type BackendKind string

const (
	// BackendFastEmbed runs an ONNX sentence-transformer model in process.
	BackendFastEmbed BackendKind = "fastembed"
	// BackendOpenAI calls an OpenAI-compatible embeddings endpoint.
	BackendOpenAI BackendKind = "openai"
	// BackendOllama calls the native Ollama embed API.
	BackendOllama BackendKind = "ollama"
	// BackendMock produces deterministic vectors without a model.
	BackendMock BackendKind = "mock"
)

// DefaultModel is the sentence-transformer used when none is configured.
const DefaultModel = "Xenova/all-MiniLM-L6-v2"

// DefaultDimension is the output size of DefaultModel.
const DefaultDimension = 384

// Config holds configuration for an embedding backend.
type Config struct {
	// Backend selects the implementation.
	Backend BackendKind

	// Host is the base URL for remote backends.
	// Example: "http://localhost:11434/v1" for an OpenAI-compatible server
	Host string

	// Model is the model identifier.
	// Example: "Xenova/all-MiniLM-L6-v2", "nomic-embed-text"
	Model string

	// CacheDir is where local backends keep downloaded model files.
	CacheDir string

	// Dimension is the vector size the backend is expected to produce.
	// Zero accepts whatever the backend returns.
	Dimension int

	// MaxLength is the token limit for local models.
	MaxLength int

	// Normalize scales every vector to unit length. Local models apply mean
	// pooling followed by this normalization.
	Normalize bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the backend implementation.
func WithBackend(kind BackendKind) ConfigOption {
	return func(c *Config) {
		c.Backend = kind
	}
}

// WithHost sets the base URL for remote backends.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithCacheDir sets the model cache directory for local backends.
func WithCacheDir(dir string) ConfigOption {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithDimension sets the expected vector size.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithMaxLength sets the token limit for local models.
func WithMaxLength(n int) ConfigOption {
	return func(c *Config) {
		c.MaxLength = n
	}
}

// WithNormalize toggles unit-length normalization.
func WithNormalize(normalize bool) ConfigOption {
	return func(c *Config) {
		c.Normalize = normalize
	}
}

// DefaultConfig returns a Config for the local all-MiniLM-L6-v2 model with
// mean pooling and normalization.
func DefaultConfig() *Config {
	return &Config{
		Backend:   BackendFastEmbed,
		Model:     DefaultModel,
		Dimension: DefaultDimension,
		MaxLength: 512,
		Normalize: true,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// canonicalize puts the backend kind and host in canonical form.
// OpenAI-compatible hosts get the /v1 suffix most servers (Ollama, LocalAI,
// vLLM) expect; Ollama's native API wants the bare host.
func (c *Config) canonicalize() {
	c.Backend = BackendKind(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Host == "" {
		return
	}
	c.Host = strings.TrimSuffix(c.Host, "/")
	switch c.Backend {
	case BackendOpenAI:
		if !strings.HasSuffix(c.Host, "/v1") {
			c.Host = c.Host + "/v1"
		}
	case BackendOllama:
		c.Host = strings.TrimSuffix(c.Host, "/v1")
	}
}

// Validate checks that the configuration is valid and complete.
// It canonicalizes the backend kind and host first.
func (c *Config) Validate() error {
	c.canonicalize()

	switch c.Backend {
	case BackendFastEmbed, BackendMock:
	case BackendOpenAI, BackendOllama:
		if c.Host == "" {
			return fmt.Errorf("ai config: Host is required for %s backend", c.Backend)
		}
	case "":
		return errors.New("ai config: Backend is required")
	default:
		return fmt.Errorf("ai config: %w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Dimension < 0 {
		return errors.New("ai config: Dimension must not be negative")
	}
	if c.MaxLength < 0 {
		return errors.New("ai config: MaxLength must not be negative")
	}
	return nil
}
