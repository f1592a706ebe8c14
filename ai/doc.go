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


// Package ai provides abstractions for the model-backed services used by kbase.
//
// The indexing core depends only on these interfaces:
//   - Embedder: Generates fixed-dimension vector embeddings from text
//   - Tokenizer: Counts, encodes and decodes tokens for budget accounting
//   - AIProvider: Aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Embeddings over OpenAI-compatible APIs via langchaingo
//   - ai/tiktoken: BPE tokenizer backed by tiktoken-go
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public production constructors (openai.NewProvider, openai.NewEmbedder) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewWordTokenizer) return CONCRETE types so tests
// can inject behavior and assert on call counts.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())  // returns ai.AIProvider
//	mockEmbed := mock.NewMockEmbedder()                       // returns *mock.MockEmbedder
//	count := mockEmbed.CallCount()
package ai
