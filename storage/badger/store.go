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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/newsembed/core"
	"github.com/poiesic/newsembed/storage"
)

// Store implements storage.Store and storage.Querier on BadgerDB.
type Store struct {
	backend   *Backend
	batchSize int
	logger    *slog.Logger
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Querier = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets how many vectors are written per transaction.
func WithBatchSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.With("component", "badger-store")
		}
	}
}

// NewStore creates a Store on an open backend. The store owns the backend
// and closes it on Close.
func NewStore(backend *Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("badger backend is required")
	}
	s := &Store{
		backend:   backend,
		batchSize: storage.DefaultUpsertBatchSize,
		logger:    slog.Default().With("component", "badger-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureIndex records the index dimension. An existing index with a
// different dimension is an error.
func (s *Store) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if err := storage.ValidateIndexName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dimension)
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readDimension(tx, name)
		if err == nil {
			if existing != dimension {
				return fmt.Errorf("index %s: %w: has %d, want %d", name, core.ErrDimensionMismatch, existing, dimension)
			}
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		buf := make([]byte, varint.PositiveInt.Size(dimension))
		varint.PositiveInt.Marshal(dimension, buf)
		if err := tx.Set(makeIndexKey(name), buf); err != nil {
			return err
		}
		s.logger.Info("created index", "index", name, "dimension", dimension)
		return tx.Commit()
	}, true)
}

// Upsert validates vectors against the index dimension and writes them in
// transactions of at most the configured batch size.
func (s *Store) Upsert(ctx context.Context, index string, vectors []core.EmbeddingVector, namespace string) error {
	if err := storage.ValidateIndexName(namespace); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	dimension, err := s.dimension(index)
	if err != nil {
		return err
	}
	if err := core.ValidateVectors(vectors, dimension); err != nil {
		return err
	}

	for _, chunk := range storage.Chunks(vectors, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			for _, v := range chunk {
				if err := tx.Set(makeVectorKey(index, namespace, v.ID), storage.MarshalVector(v)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return fmt.Errorf("writing %d vectors: %w", len(chunk), err)
		}
	}
	return nil
}

// Count returns the number of vectors stored in namespace of index.
func (s *Store) Count(ctx context.Context, index, namespace string) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeNamespacePrefix(index, namespace)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Get retrieves a single vector by id.
// Returns storage.ErrNotFound if it doesn't exist.
func (s *Store) Get(ctx context.Context, index, namespace, id string) (core.EmbeddingVector, error) {
	var v core.EmbeddingVector
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorKey(index, namespace, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err = storage.UnmarshalVector(val)
			return err
		})
	}, false)
	return v, err
}

// Query scans the namespace and returns the k vectors with the highest
// cosine similarity to vector.
func (s *Store) Query(ctx context.Context, index, namespace string, vector []float32, k int) ([]storage.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}

	var results []storage.Match
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeNamespacePrefix(index, namespace)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var v core.EmbeddingVector
			err := iter.Item().Value(func(val []byte) error {
				var err error
				v, err = storage.UnmarshalVector(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, storage.Match{Vector: v, Score: cosine(vector, v.Values)})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b storage.Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) dimension(index string) (int, error) {
	var dimension int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		dimension, err = readDimension(tx, index)
		return err
	}, false)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("index %s: %w", index, err)
	}
	return dimension, err
}

func readDimension(tx *badger.Txn, index string) (int, error) {
	item, err := tx.Get(makeIndexKey(index))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var dimension int
	err = item.Value(func(val []byte) error {
		var err error
		dimension, _, err = varint.PositiveInt.Unmarshal(val)
		return err
	})
	return dimension, err
}

// cosine returns the cosine similarity of a and b, or 0 when either is zero.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
