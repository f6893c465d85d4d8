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


// Package embed provides abstractions for the embedding service used by the
// sync pipeline and the searcher.
//
// This package defines the Embedder interface plus the shared vector helpers.
// It follows the dependency inversion principle, allowing the pipeline and
// search layers to depend on abstractions rather than concrete
// implementations.
//
// # Implementation Packages
//
// The embed package includes two implementation sub-packages:
//
//   - embed/openai: Production implementation using OpenAI-compatible APIs
//   - embed/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewEmbedder) return INTERFACE types to enforce
// abstraction and prevent accidental coupling to concrete implementations.
//
//	embedder, err := openai.NewEmbedder(cfg)  // returns embed.Embedder
//
// Test utility constructors (mock.NewMockEmbedder) return CONCRETE types to
// enable test assertions and behavior injection via the mock's public fields
// and methods (EmbedTextFunc, CallCount, Reset).
//
// # Rate Limiting
//
// RateLimited decorates any Embedder with a client-side request budget so a
// full table scan does not overload a shared embedding service:
//
//	embedder, _ := openai.NewEmbedder(cfg)
//	limited := embed.NewRateLimited(embedder, 10) // 10 requests/second
package embed
