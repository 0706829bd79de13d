// Package config loads the settings of an embedding run.
//
// Settings come from an optional YAML file named by NEWSEMBED_CONFIG and are
// overridden by environment variables. A variable SECTION_FIELD_NAME sets
// the key section.field_name, so STORE_API_KEY sets store.api_key.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/newsembed/core"
)

// Store kinds.
const (
	StoreQdrant  = "qdrant"
	StoreMilvus  = "milvus"
	StoreChromem = "chromem"
	StoreBadger  = "badger"
)

var storeKinds = []string{StoreQdrant, StoreMilvus, StoreChromem, StoreBadger}

// Config holds the complete configuration of a run.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
}

// StoreConfig selects and addresses the vector store.
type StoreConfig struct {
	APIKey      string `koanf:"api_key"`
	Environment string `koanf:"environment"`
	Index       string `koanf:"index"`
	Kind        string `koanf:"kind"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Namespace   string `koanf:"namespace"`
	Dimension   int    `koanf:"dimension"`
	UpsertBatch int    `koanf:"upsert_batch"`
	TLS         bool   `koanf:"tls"`
	// Path is the data directory of the embedded stores.
	Path string `koanf:"path"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Backend  string `koanf:"backend"`
	Model    string `koanf:"model"`
	Host     string `koanf:"host"`
	CacheDir string `koanf:"cache_dir"`
}

// PipelineConfig controls how the source table is read and batched.
type PipelineConfig struct {
	Source         string        `koanf:"source"`
	SplitLines     int           `koanf:"split_lines"`
	ChunkSize      int           `koanf:"chunk_size"`
	BatchSize      int           `koanf:"batch_size"`
	ReportInterval time.Duration `koanf:"report_interval"`
	MetadataFields []string      `koanf:"metadata_fields"`
	ContentField   string        `koanf:"content_field"`
	IDField        string        `koanf:"id_field"`
	StableIDs      bool          `koanf:"stable_ids"`
}

// MetricsConfig holds the Pushgateway target. Empty disables pushing.
type MetricsConfig struct {
	PushURL string `koanf:"push_url"`
	Job     string `koanf:"job"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Default returns the configuration used for every unset key.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Kind:        StoreQdrant,
			Host:        "localhost",
			Port:        6334,
			Namespace:   "default",
			Dimension:   384,
			UpsertBatch: 100,
		},
		Embedding: EmbeddingConfig{
			Backend: "fastembed",
			Model:   "Xenova/all-MiniLM-L6-v2",
		},
		Pipeline: PipelineConfig{
			Source:         "./data/all-the-news-2-1.csv",
			SplitLines:     500000,
			ChunkSize:      10,
			BatchSize:      10,
			ReportInterval: time.Second,
			MetadataFields: []string{"section", "url", "title", "publication", "author", "article"},
			ContentField:   "article",
		},
		Metrics: MetricsConfig{
			Job: "newsembed",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks required settings first, then value ranges. Every
// failure is a *core.ConfigurationError naming the environment variable.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"STORE_API_KEY", c.Store.APIKey},
		{"STORE_ENVIRONMENT", c.Store.Environment},
		{"STORE_INDEX", c.Store.Index},
	}
	for _, r := range required {
		if r.value == "" {
			return &core.ConfigurationError{Key: r.key}
		}
	}

	if !slices.Contains(storeKinds, c.Store.Kind) {
		return &core.ConfigurationError{Key: "STORE_KIND", Reason: fmt.Sprintf("unknown store %q", c.Store.Kind)}
	}
	if c.Store.Dimension <= 0 {
		return &core.ConfigurationError{Key: "STORE_DIMENSION", Reason: "must be positive"}
	}
	if c.Pipeline.ChunkSize <= 0 {
		return &core.ConfigurationError{Key: "PIPELINE_CHUNK_SIZE", Reason: "must be positive"}
	}
	if c.Pipeline.BatchSize <= 0 {
		return &core.ConfigurationError{Key: "PIPELINE_BATCH_SIZE", Reason: "must be positive"}
	}
	if c.Pipeline.BatchSize > c.Pipeline.ChunkSize {
		return &core.ConfigurationError{
			Key:    "PIPELINE_BATCH_SIZE",
			Reason: fmt.Sprintf("%d exceeds chunk size %d", c.Pipeline.BatchSize, c.Pipeline.ChunkSize),
		}
	}
	if c.Pipeline.SplitLines <= 0 {
		return &core.ConfigurationError{Key: "PIPELINE_SPLIT_LINES", Reason: "must be positive"}
	}
	if c.Pipeline.ContentField == "" {
		return &core.ConfigurationError{Key: "PIPELINE_CONTENT_FIELD", Reason: "must not be empty"}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return &core.ConfigurationError{Key: "LOG_LEVEL", Reason: err.Error()}
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
