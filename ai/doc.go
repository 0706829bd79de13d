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


// Package ai provides abstractions for the embedding models used by newsembed.
//
// The package defines the Embedder and Backend interfaces plus the shared
// backend configuration. Pooling and normalization are backend settings fixed
// when the backend is built, never per call.
//
// # Implementation Packages
//
//   - ai/fastembed: in-process ONNX sentence-transformers (requires cgo)
//   - ai/openai: OpenAI-compatible HTTP APIs via langchaingo
//   - ai/ollama: the native Ollama embed API
//   - ai/mock: deterministic test doubles
//
// Public constructors return the ai.Backend interface. The mock constructor
// returns its concrete type so tests can inject behavior and inspect calls.
package ai
