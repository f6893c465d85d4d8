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


// Package search provides query capabilities over the synced destination.
//
// The Searcher type combines two signals:
//   - Semantic search using vector embeddings
//   - Verbatim keyword matching with stop-word filtering
//
// The package also owns the search-text derivation applied to every row by
// the transform stage, so stored rows and queries agree on tokenization.
package search
