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


package storage

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/kbase/core"
)

const uuidSize = 16

// VectorEntry is the persisted form of a vector store row. Seq records the
// insertion order used to break similarity ties.
type VectorEntry struct {
	Seq    int64
	Vector []float32
}

// MarshalID serializes a UUID to bytes.
func MarshalID(id uuid.UUID) []byte {
	buf := make([]byte, uuidSize)
	copy(buf, id[:])
	return buf
}

// UnmarshalID deserializes a UUID from bytes.
func UnmarshalID(data []byte) (uuid.UUID, error) {
	if len(data) < uuidSize {
		return uuid.Nil, ErrTruncatedData
	}
	return uuid.FromBytes(data[:uuidSize])
}

// MarshalFile serializes a KnowledgeFile to bytes.
func MarshalFile(file *core.KnowledgeFile) []byte {
	buf := make([]byte, KnowledgeFileMUS.Size(*file))
	KnowledgeFileMUS.Marshal(*file, buf)
	return buf
}

// UnmarshalFile deserializes a KnowledgeFile from bytes.
func UnmarshalFile(data []byte) (*core.KnowledgeFile, error) {
	file, _, err := KnowledgeFileMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: file: %w", ErrSerializationFailed, err)
	}
	return &file, nil
}

// MarshalSection serializes a Section without its chunks.
func MarshalSection(section *core.Section) []byte {
	buf := make([]byte, SectionMUS.Size(*section))
	SectionMUS.Marshal(*section, buf)
	return buf
}

// UnmarshalSection deserializes a Section. Chunks are left nil.
func UnmarshalSection(data []byte) (*core.Section, error) {
	section, _, err := SectionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: section: %w", ErrSerializationFailed, err)
	}
	return &section, nil
}

// MarshalChunk serializes a Chunk including its embedding.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalVectorEntry serializes a vector store row.
func MarshalVectorEntry(entry *VectorEntry) []byte {
	buf := make([]byte, VectorEntryMUS.Size(*entry))
	VectorEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalVectorEntry deserializes a vector store row.
func UnmarshalVectorEntry(data []byte) (*VectorEntry, error) {
	entry, _, err := VectorEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}
