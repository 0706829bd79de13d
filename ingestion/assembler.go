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


package ingestion

import (
	"fmt"
	"slices"

	"github.com/poiesic/newsembed/core"
)

// Assembler builds Documents from table rows.
type Assembler struct {
	metadataFields []string
	contentField   string
	idField        string
	stableIDs      bool
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithIDField copies the named row field into metadata["id"], which the
// embedder uses as the vector id.
func WithIDField(name string) AssemblerOption {
	return func(a *Assembler) {
		a.idField = name
	}
}

// WithStableIDs derives metadata["id"] from the content when the row does
// not supply one, so re-runs overwrite instead of duplicating.
func WithStableIDs() AssemblerOption {
	return func(a *Assembler) {
		a.stableIDs = true
	}
}

// NewAssembler creates an Assembler that copies metadataFields into each
// document's metadata and uses contentField as the text to embed.
func NewAssembler(metadataFields []string, contentField string, opts ...AssemblerOption) (*Assembler, error) {
	if contentField == "" {
		return nil, ErrContentFieldRequired
	}
	a := &Assembler{
		metadataFields: slices.Clone(metadataFields),
		contentField:   contentField,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble builds the Document for row. Metadata fields the row lacks are
// left out; a missing content field is a *core.SchemaError.
func (a *Assembler) Assemble(row core.Row) (core.Document, error) {
	content, ok := row.Get(a.contentField)
	if !ok {
		return core.Document{}, &core.SchemaError{Field: a.contentField, Row: row.Index}
	}
	text := toText(content)

	metadata := make(core.Metadata, len(a.metadataFields)+1)
	for _, field := range a.metadataFields {
		if v, ok := row.Get(field); ok {
			metadata[field] = v
		}
	}

	if a.idField != "" {
		if v, ok := row.Get(a.idField); ok {
			metadata[core.MetadataIDKey] = v
		}
	}
	if _, ok := metadata.ID(); !ok && a.stableIDs {
		metadata[core.MetadataIDKey] = core.StableID(text)
	}

	return core.Document{PageContent: text, Metadata: metadata}, nil
}

// AssembleAll assembles rows in order, stopping at the first error.
func (a *Assembler) AssembleAll(rows []core.Row) ([]core.Document, error) {
	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := a.Assemble(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
