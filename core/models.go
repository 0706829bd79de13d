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


package core

import (
	"encoding/hex"
	"fmt"
	"maps"

	"github.com/go-crypt/x/blake2b"
)

// MetadataIDKey is the metadata key that carries a caller supplied vector id.
const MetadataIDKey = "id"

// MetadataTextKey is the metadata key used when an embedding is created
// without explicit metadata.
const MetadataTextKey = "text"

// Row is one record of the source table.
// Index is the row's position in the loaded table. Fields holds the typed
// cell values keyed by column name; a missing cell has no key.
type Row struct {
	Index  int
	Fields map[string]any
}

// Get returns the value of a field and whether the row carries it.
func (r Row) Get(field string) (any, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// Metadata maps field names to scalar values (string, int64, float64, bool).
type Metadata map[string]any

// ID returns the caller supplied id, if any. Only an absent or nil id
// counts as missing; an explicit empty string is returned as is.
func (m Metadata) ID() (string, bool) {
	v, ok := m[MetadataIDKey]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Clone returns a shallow copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Document is the text to embed plus the metadata stored alongside it.
// A Document with nil Metadata is a bare string: the embedder will
// substitute {"text": PageContent}.
type Document struct {
	PageContent string
	Metadata    Metadata
}

// EmbeddingVector is the unit written to a vector store.
type EmbeddingVector struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Dimension returns the number of components in the vector.
func (v EmbeddingVector) Dimension() int {
	return len(v.Values)
}

// StableID derives a deterministic id from the given parts using BLAKE2b.
// Identical inputs always produce identical ids, which makes re-runs of the
// pipeline overwrite instead of duplicate.
func StableID(parts ...string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
