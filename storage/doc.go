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


// Package storage is the vector store abstraction for newsembed.
//
// A Store owns named indexes of fixed dimension and accepts upserts of
// embedding vectors into a namespace of an index. Stores split large
// writes into their own sub-batches with Chunks.
//
// # Backends
//
//   - storage/qdrant: remote Qdrant over gRPC
//   - storage/milvus: remote Milvus, one partition per namespace
//   - storage/chromem: embedded chromem-go, optionally persisted
//   - storage/badger: embedded BadgerDB with brute-force search
//
// The embedded stores also implement Querier so that written vectors can be
// read back and checked.
//
// # Thread Safety
//
// All Store implementations must be safe for concurrent use.
package storage
