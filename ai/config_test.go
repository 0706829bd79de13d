package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, BackendFastEmbed, cfg.Backend)
	assert.Equal(t, "Xenova/all-MiniLM-L6-v2", cfg.Model)
	assert.Equal(t, 384, cfg.Dimension)
	assert.True(t, cfg.Normalize)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithBackend(BackendOpenAI),
		WithHost("http://localhost:8080"),
		WithModel("text-embedding-3-small"),
		WithDimension(1536),
		WithNormalize(false),
		WithCacheDir("/tmp/models"),
		WithMaxLength(256),
	)

	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	assert.Equal(t, 1536, cfg.Dimension)
	assert.False(t, cfg.Normalize)
	assert.Equal(t, "/tmp/models", cfg.CacheDir)
	assert.Equal(t, 256, cfg.MaxLength)
}

func TestConfig_Canonicalize(t *testing.T) {
	tests := []struct {
		name    string
		backend BackendKind
		host    string
		want    string
	}{
		{"openai adds v1", BackendOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"openai strips slash", BackendOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"openai keeps v1", BackendOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"ollama strips v1", BackendOllama, "http://localhost:11434/v1", "http://localhost:11434"},
		{"fastembed untouched", BackendFastEmbed, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Backend: tt.backend, Host: tt.host}
			cfg.canonicalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}

	t.Run("backend kind is lowercased", func(t *testing.T) {
		cfg := &Config{Backend: " OpenAI "}
		cfg.canonicalize()
		assert.Equal(t, BackendOpenAI, cfg.Backend)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid fastembed", Config{Backend: BackendFastEmbed, Model: DefaultModel}, ""},
		{"valid mock", Config{Backend: BackendMock, Model: "mock"}, ""},
		{"missing backend", Config{Model: "m"}, "Backend is required"},
		{"unknown backend", Config{Backend: "bogus", Model: "m"}, "unknown embedding backend"},
		{"remote without host", Config{Backend: BackendOllama, Model: "m"}, "Host is required"},
		{"missing model", Config{Backend: BackendMock}, "Model is required"},
		{"negative dimension", Config{Backend: BackendMock, Model: "m", Dimension: -1}, "Dimension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("unknown backend wraps sentinel", func(t *testing.T) {
		cfg := Config{Backend: "bogus", Model: "m"}
		assert.ErrorIs(t, cfg.Validate(), ErrUnknownBackend)
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
	assert.Empty(t, NormalizeVector(nil))
}
