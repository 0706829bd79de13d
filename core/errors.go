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
	"errors"
	"fmt"
)

// Failure kinds that abort a run. Each is wrapped by a typed error carrying
// context, so callers can test with errors.Is or extract with errors.As.
var (
	// ErrConfiguration indicates a required setting is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrSchema indicates a row lacks a field the assembler requires.
	ErrSchema = errors.New("schema error")

	// ErrEmbeddingBackend indicates a single embed call failed.
	ErrEmbeddingBackend = errors.New("embedding backend error")

	// ErrStoreWrite indicates the vector store rejected a write.
	ErrStoreWrite = errors.New("store write error")
)

// Validation errors
var (
	// ErrInvalidVector indicates an EmbeddingVector failed validation.
	ErrInvalidVector = errors.New("invalid embedding vector")

	// ErrEmptyID indicates the vector has no id.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyValues indicates the vector has no components.
	ErrEmptyValues = errors.New("values cannot be empty")

	// ErrDimensionMismatch indicates the vector length differs from the index.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// ConfigurationError reports a missing or malformed setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("environment variable %s is not defined", e.Key)
	}
	return fmt.Sprintf("setting %s: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// SchemaError reports a row that lacks the designated field.
type SchemaError struct {
	Field string
	Row   int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("row %d: missing field %q", e.Row, e.Field)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// EmbeddingBackendError reports a failed embed call together with the text
// that caused it.
type EmbeddingBackendError struct {
	Text  string
	Cause error
}

func (e *EmbeddingBackendError) Error() string {
	return fmt.Sprintf("embedding %d chars of text: %v", len(e.Text), e.Cause)
}

// Unwrap exposes both the sentinel and the backend cause.
func (e *EmbeddingBackendError) Unwrap() []error {
	return []error{ErrEmbeddingBackend, e.Cause}
}

// StoreWriteError reports a rejected upsert.
type StoreWriteError struct {
	Index     string
	Namespace string
	Count     int
	Cause     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("upserting %d vectors into %s/%s: %v", e.Count, e.Index, e.Namespace, e.Cause)
}

// Unwrap exposes both the sentinel and the store cause.
func (e *StoreWriteError) Unwrap() []error {
	return []error{ErrStoreWrite, e.Cause}
}
