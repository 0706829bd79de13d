package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/embedding"
	"github.com/poiesic/newsembed/storage"
)

// verbatimBoost is added to hits containing every query word.
const verbatimBoost = 0.3

// Result is one ranked hit.
type Result struct {
	ID         string
	Metadata   core.Metadata
	Similarity float32
	Score      float32
	Verbatim   bool
}

// Searcher runs queries against one index and namespace.
type Searcher struct {
	embedder     embedding.ItemEmbedder
	querier      storage.Querier
	index        string
	namespace    string
	contentField string
	minScore     float32
	logger       *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithMinSimilarity drops hits below the given cosine similarity.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		if min < -1 || min > 1 {
			return fmt.Errorf("minimum similarity %v outside [-1, 1]", min)
		}
		s.minScore = min
		return nil
	}
}

// WithContentField names the metadata field checked for verbatim matches.
// Default is "article".
func WithContentField(field string) Option {
	return func(s *Searcher) error {
		s.contentField = field
		return nil
	}
}

// NewSearcher creates a searcher over index/namespace of querier.
func NewSearcher(embedder embedding.ItemEmbedder, querier storage.Querier, index, namespace string, opts ...Option) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if querier == nil {
		return nil, ErrQuerierRequired
	}

	s := &Searcher{
		embedder:     embedder,
		querier:      querier,
		index:        index,
		namespace:    namespace,
		contentField: "article",
		minScore:     -1,
		logger:       slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FindSimilar returns up to maxHits results for query, best first.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		return []Result{}, nil
	}

	vector, err := s.embedder.Embed(ctx, query, core.Metadata{})
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.querier.Query(ctx, s.index, s.namespace, vector.Values, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar vectors", "index", s.index, "err", err)
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < s.minScore {
			continue
		}
		r := Result{
			ID:         m.Vector.ID,
			Metadata:   m.Vector.Metadata,
			Similarity: m.Score,
			Score:      m.Score,
		}
		if content, ok := m.Vector.Metadata[s.contentField].(string); ok && containsAllQueryWords(content, query) {
			r.Verbatim = true
			r.Score += verbatimBoost
		}
		results = append(results, r)
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	s.logger.Debug("search finished", "query", query, "hits", len(results))
	return results, nil
}
