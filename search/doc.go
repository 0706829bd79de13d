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


// Package search answers free-text queries against an embedded index.
//
// A query is embedded with the same model used for ingestion and matched by
// cosine similarity through storage.Querier. Hits whose stored article
// contains every non-stop-word of the query get a fixed verbatim boost, and
// the result is ranked by the boosted score.
package search
