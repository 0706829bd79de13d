package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/newsembed/ai"
	"github.com/poiesic/newsembed/ai/mock"
	"github.com/poiesic/newsembed/config"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `,title,author,publication,section,url,article
0,Rates hold,Ann Lee,Reuters,business,https://example.com/0,The central bank held rates steady.
1,Storm warning,Bo Chen,CNN,weather,https://example.com/1,A storm is expected on the coast.
2,No author,,Vox,politics,https://example.com/2,This row is dropped for its missing author.
3,Cup final,Cy Diaz,BBC,sports,https://example.com/3,The final went to penalties.
`

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "news.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.APIKey = "unused"
	cfg.Store.Environment = "test"
	cfg.Store.Index = "news"
	cfg.Store.Kind = config.StoreBadger
	cfg.Store.Path = filepath.Join(t.TempDir(), "db")
	cfg.Embedding.Backend = string(ai.BackendMock)
	cfg.Pipeline.Source = writeSource(t)
	cfg.Pipeline.ChunkSize = 2
	cfg.Pipeline.BatchSize = 2
	cfg.Pipeline.IDField = "Unnamed: 0"
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)

	n, err := run(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "incomplete row is dropped")

	store, err := badger.OpenStore(cfg.Store.Path)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.Count(context.Background(), "news", "default")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	v, err := store.Get(context.Background(), "news", "default", "3")
	require.NoError(t, err)
	assert.Equal(t, "Cup final", v.Metadata["title"])
	assert.Equal(t, mock.GenerateDeterministicVector("The final went to penalties.", ai.DefaultDimension), v.Values)

	_, err = os.Stat(cfg.Pipeline.Source + ".1")
	assert.NoError(t, err, "source is split before loading")
}

func TestRun_Rerun(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	_, err = run(context.Background(), cfg, io.Discard)
	require.NoError(t, err)

	store, err := badger.OpenStore(cfg.Store.Path)
	require.NoError(t, err)
	defer store.Close()
	count, err := store.Count(context.Background(), "news", "default")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "explicit ids overwrite on re-run")
}

func TestRun_MissingSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Source = filepath.Join(t.TempDir(), "missing.csv")

	n, err := run(context.Background(), cfg, io.Discard)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestRun_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Backend = "word2vec"

	_, err := run(context.Background(), cfg, io.Discard)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestRun_SchemaError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.ContentField = "body"

	_, err := run(context.Background(), cfg, io.Discard)
	assert.ErrorIs(t, err, core.ErrSchema)
}

func TestSearchIndex(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(context.Background(), cfg, io.Discard)
	require.NoError(t, err)

	results, err := searchIndex(context.Background(), cfg, "The final went to penalties.", 2, -1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "3", results[0].ID)
	assert.True(t, results[0].Verbatim)
	assert.Equal(t, "Cup final", results[0].Metadata["title"])

	_, err = searchIndex(context.Background(), cfg, " ", 2, -1)
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := setupLogger(config.LogConfig{Level: tt.level})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), "invalid log level"))
				return
			}
			require.NoError(t, err)
			assert.True(t, slog.Default().Enabled(context.Background(), tt.want))
			assert.False(t, slog.Default().Enabled(context.Background(), tt.want-1))
		})
	}
}

func TestNewBackend(t *testing.T) {
	cfg, err := aiConfig(config.EmbeddingConfig{Backend: "mock", Model: "m"}, 16)
	require.NoError(t, err)

	backend, err := backendFactory(cfg)(context.Background(), "other-model")
	require.NoError(t, err)
	assert.Equal(t, 16, backend.Dimension())
	assert.Equal(t, "m", cfg.Model, "factory does not mutate the base config")

	_, err = newBackend(&ai.Config{Backend: "word2vec"})
	assert.ErrorIs(t, err, ai.ErrUnknownBackend)

	_, err = aiConfig(config.EmbeddingConfig{Backend: "ollama", Model: "nomic-embed-text"}, 768)
	assert.Error(t, err, "remote backends need a host")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, kind := range []string{config.StoreBadger, config.StoreChromem} {
		t.Run(kind, func(t *testing.T) {
			store, err := openStore(ctx, config.StoreConfig{Kind: kind, UpsertBatch: 10}, logger)
			require.NoError(t, err)
			require.NoError(t, store.EnsureIndex(ctx, "news", 4))
			assert.NoError(t, store.Close())
		})
	}

	_, err := openStore(ctx, config.StoreConfig{Kind: "pinecone"}, logger)
	assert.Error(t, err)
}
