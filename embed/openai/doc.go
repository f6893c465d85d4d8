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


// Package openai implements embed.Embedder using OpenAI-compatible APIs.
//
// The implementation works with any OpenAI-compatible embedding endpoint,
// including Ollama, LocalAI, vLLM and the OpenAI API itself. Local services
// that do not require authentication are supported by sending a placeholder
// token.
package openai
