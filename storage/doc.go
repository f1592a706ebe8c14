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


// Package storage defines the persistence contracts for kbase.
//
// Four stores back the index:
//
//   - FileStore: one record per source file with its content fingerprint
//   - SectionStore: sections keyed by ID and by (file, index)
//   - ChunkStore: chunks keyed by ID, by section and by file
//   - VectorStore: chunk embeddings answering cosine nearest-neighbor queries
//
// Implementations live in sub-packages. storage/memory keeps everything in
// process, storage/badger persists to an embedded BadgerDB, and
// storage/postgres provides a pgvector-backed VectorStore.
//
//	stores, closer, err := badger.OpenStores("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer closer.Close()
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. VectorStore.Search is
// read-only and may run alongside writes.
//
// # Encoding
//
// Records persisted as bytes use the mus-go codecs in serialization.go. A nil
// embedding is distinct from an empty one so a chunk that was never embedded
// can be detected after a restart.
package storage
