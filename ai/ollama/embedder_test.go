package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/newsembed/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, embeddings [][]float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "model not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      "nomic-embed-text",
			"embeddings": embeddings,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_EmbedText(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, [][]float32{{3, 4}})

	backend, err := NewBackend(ai.NewConfig(
		ai.WithBackend(ai.BackendOllama),
		ai.WithHost(srv.URL+"/v1"),
		ai.WithModel("nomic-embed-text"),
		ai.WithDimension(2),
	))
	require.NoError(t, err)
	defer backend.Close()

	v, err := backend.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.InDelta(t, 0.6, v[0], 1e-6, "normalized by default")
	assert.Equal(t, 2, backend.Dimension())
}

func TestEmbedder_ServerError(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, nil)

	backend, err := NewBackend(ai.NewConfig(
		ai.WithBackend(ai.BackendOllama),
		ai.WithHost(srv.URL),
		ai.WithModel("missing"),
	))
	require.NoError(t, err)

	_, err = backend.EmbedText(context.Background(), "hello")
	assert.Error(t, err)
}

func TestEmbedder_CountMismatch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, [][]float32{{1, 0}})

	backend, err := NewBackend(ai.NewConfig(
		ai.WithBackend(ai.BackendOllama),
		ai.WithHost(srv.URL),
		ai.WithModel("nomic-embed-text"),
	))
	require.NoError(t, err)

	_, err = backend.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}
