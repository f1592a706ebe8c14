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


// Package ingestion keeps the knowledge base in step with its source files.
//
// The Pipeline fingerprints each FileSource with SHA-256. When the stored
// fingerprint matches, nothing happens. Otherwise the file's old sections,
// chunks and vectors are removed and the content is run through the
// chunking engine, persisting every section and chunk and upserting one
// vector per chunk.
//
// # Usage
//
//	pipeline, err := ingestion.NewPipeline(&stores.Stores, provider,
//	    ingestion.WithEmbeddingDimension(768))
//	if err != nil {
//	    return err
//	}
//	defer pipeline.Release()
//
//	changed, err := pipeline.Consume(ctx, ingestion.NewLocalFileSource("notes.md", uuid.Nil))
//
// # Failure Handling
//
// The pipeline makes no retry decisions. A failed Consume leaves the file
// Pending with an empty fingerprint, so calling Consume again with the same
// content rebuilds it from scratch. Broken engine output (a chunk without an
// embedding, an empty section) additionally marks the file Error.
//
// # Concurrency
//
// Consume calls for different file ids may run concurrently. ConsumeAll fans
// a batch out over the pipeline's ants pool and rejects duplicate ids.
package ingestion
