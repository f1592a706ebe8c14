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


// Package search answers natural-language queries over indexed chunks.
//
// A query is embedded with the same model used at indexing time and matched
// against the vector store by cosine similarity. Each hit is hydrated with
// its chunk, section and file, then scored:
//   - RelevanceScore is round(similarity*100), clamped to [0, 100]
//   - NormalizedScore rescales the result set's similarities to [0, 100]
//   - StandardDeviation is the population spread of those similarities
//
// Hits whose chunk or section has been removed are skipped with a warning.
package search
