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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/poiesic/newsembed/config"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/embedding"
	"github.com/poiesic/newsembed/ingestion"
	"github.com/poiesic/newsembed/metrics"
	"github.com/poiesic/newsembed/search"
	"github.com/poiesic/newsembed/storage"
	"github.com/poiesic/newsembed/table"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const configKey = "config"

// headRows is how many rows of the loaded table are logged before the run.
const headRows = 5

func main() {
	app := &cli.App{
		Name:  "newsembed",
		Usage: "Embed a news article table into a vector index",
		Description: "All settings come from the environment (STORE_API_KEY, STORE_ENVIRONMENT and\n" +
			"STORE_INDEX are required) or from the YAML file named by NEWSEMBED_CONFIG.",
		Before: setup,
		Action: embedCommand,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Query an embedded index (badger and chromem stores)",
				ArgsUsage: "<query words>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "hits",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Drop hits below this cosine similarity",
						Value: -1,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration and installs the logger. Nothing else runs
// when it fails.
func setup(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogger(cfg.Log); err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(cfg config.LogConfig) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Level)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func embedCommand(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	_, err = run(ctx, cfg, os.Stderr)
	return err
}

func searchCommand(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return errors.New("search query is required")
	}

	results, err := searchIndex(c.Context, cfg, query, c.Int("hits"), float32(c.Float64("min-similarity")))
	if err != nil {
		return err
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: '%v' (%s)[%0.3f]\n", i, hit.Metadata["title"], hit.ID, hit.Score)
	}
	return nil
}

// searchIndex embeds query with the configured model and ranks the closest
// vectors of the configured namespace.
func searchIndex(ctx context.Context, cfg *config.Config, query string, hits int, minSimilarity float32) ([]search.Result, error) {
	logger := slog.Default()

	backendCfg, err := aiConfig(cfg.Embedding, cfg.Store.Dimension)
	if err != nil {
		return nil, &core.ConfigurationError{Key: "EMBEDDING_BACKEND", Reason: err.Error()}
	}
	embedder, err := embedding.New(backendFactory(backendCfg), embedding.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer embedder.Close()
	if err := embedder.Init(ctx, cfg.Embedding.Model); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Kind, err)
	}
	defer store.Close()

	dimension := embedder.Dimension()
	if dimension <= 0 {
		dimension = cfg.Store.Dimension
	}
	if err := store.EnsureIndex(ctx, cfg.Store.Index, dimension); err != nil {
		return nil, err
	}

	querier, ok := store.(storage.Querier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", search.ErrQuerierRequired, cfg.Store.Kind)
	}

	searcher, err := search.NewSearcher(embedder, querier, cfg.Store.Index, cfg.Store.Namespace,
		search.WithLogger(logger),
		search.WithMinSimilarity(minSimilarity),
		search.WithContentField(cfg.Pipeline.ContentField),
	)
	if err != nil {
		return nil, err
	}
	return searcher.FindSimilar(ctx, query, hits)
}

// run embeds the first part of the configured source into the configured
// index and returns the number of vectors written.
func run(ctx context.Context, cfg *config.Config, progressOut io.Writer) (int, error) {
	logger := slog.Default()
	m := metrics.New()
	defer func() {
		if err := m.Push(context.WithoutCancel(ctx), cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			logger.Warn("metrics push failed", "err", err)
		}
	}()

	tbl, err := loadSource(cfg.Pipeline, logger)
	if err != nil {
		return 0, err
	}

	backendCfg, err := aiConfig(cfg.Embedding, cfg.Store.Dimension)
	if err != nil {
		return 0, &core.ConfigurationError{Key: "EMBEDDING_BACKEND", Reason: err.Error()}
	}
	embedder, err := embedding.New(backendFactory(backendCfg),
		embedding.WithLogger(logger),
		embedding.WithMetrics(m),
	)
	if err != nil {
		return 0, err
	}
	defer embedder.Close()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return 0, fmt.Errorf("opening %s store: %w", cfg.Store.Kind, err)
	}
	defer store.Close()

	logger.Info("preparing run",
		"store", cfg.Store.Kind,
		"environment", cfg.Store.Environment,
		"index", cfg.Store.Index,
		"namespace", cfg.Store.Namespace,
		"backend", cfg.Embedding.Backend,
		"model", cfg.Embedding.Model)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return store.EnsureIndex(gctx, cfg.Store.Index, cfg.Store.Dimension)
	})
	g.Go(func() error {
		return embedder.Init(gctx, cfg.Embedding.Model)
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if dim := embedder.Dimension(); dim > 0 && dim != cfg.Store.Dimension {
		return 0, &core.ConfigurationError{
			Key:    "STORE_DIMENSION",
			Reason: fmt.Sprintf("index expects %d but model %s produces %d", cfg.Store.Dimension, cfg.Embedding.Model, dim),
		}
	}

	progress := ingestion.NewProgressTracker(progressOut, tbl.Len(), cfg.Pipeline.ReportInterval)
	pipeline, err := buildPipeline(cfg, tbl, embedder, store, progress, logger, m)
	if err != nil {
		return 0, err
	}

	progress.Start()
	n, err := pipeline.Run(ctx)
	progress.Finish()
	if err != nil {
		logger.Error("run aborted", "written", n, "elapsed", progress.Elapsed(), "err", err)
		return n, err
	}

	logger.Info(fmt.Sprintf("Inserted %d embeddings into index %s", n, cfg.Store.Index), "elapsed", progress.Elapsed())
	if q, ok := store.(storage.Querier); ok {
		if total, err := q.Count(ctx, cfg.Store.Index, cfg.Store.Namespace); err == nil {
			logger.Info("namespace size", "namespace", cfg.Store.Namespace, "vectors", total)
		}
	}
	return n, nil
}

// loadSource splits the source file and loads its first part without
// incomplete rows.
func loadSource(cfg config.PipelineConfig, logger *slog.Logger) (*table.Table, error) {
	parts, err := table.Split(cfg.Source, cfg.SplitLines)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", cfg.Source, err)
	}
	logger.Info("split source", "source", cfg.Source, "parts", len(parts))

	tbl, err := table.Load(parts[0])
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", parts[0], err)
	}
	loaded := tbl.Len()
	tbl = tbl.DropIncomplete()
	logger.Info("loaded table", "file", parts[0], "rows", tbl.Len(), "dropped", loaded-tbl.Len(), "columns", tbl.Columns())

	for _, row := range tbl.Head(headRows) {
		logger.Info("head", "row", row.Index, "fields", row.Fields)
	}
	return tbl, nil
}

func buildPipeline(
	cfg *config.Config,
	tbl *table.Table,
	embedder *embedding.Embedder,
	store storage.Store,
	progress *ingestion.ProgressTracker,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*ingestion.Pipeline, error) {
	var opts []ingestion.AssemblerOption
	if cfg.Pipeline.IDField != "" {
		opts = append(opts, ingestion.WithIDField(cfg.Pipeline.IDField))
	}
	if cfg.Pipeline.StableIDs {
		opts = append(opts, ingestion.WithStableIDs())
	}
	assembler, err := ingestion.NewAssembler(cfg.Pipeline.MetadataFields, cfg.Pipeline.ContentField, opts...)
	if err != nil {
		return nil, err
	}

	producer, err := ingestion.NewChunkProducer(tbl, cfg.Pipeline.ChunkSize, assembler)
	if err != nil {
		return nil, err
	}
	batcher, err := embedding.NewBatcher(embedder,
		embedding.WithBatcherLogger(logger),
		embedding.WithBatcherMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	sink, err := ingestion.NewSink(store, cfg.Store.Index, cfg.Store.Namespace, progress,
		ingestion.WithSinkLogger(logger),
		ingestion.WithSinkMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	return ingestion.NewPipeline(producer, batcher, sink, cfg.Pipeline.BatchSize,
		ingestion.WithLogger(logger),
		ingestion.WithMetrics(m),
	)
}
