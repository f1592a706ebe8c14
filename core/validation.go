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


package core

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidateFile validates a KnowledgeFile according to domain rules.
//
// Validation rules:
//   - ID must not be the zero UUID
//
// NOT validated:
//   - ContentHash (empty while Pending)
//   - Name (sources may be anonymous)
func ValidateFile(file *KnowledgeFile) error {
	if file == nil {
		return fmt.Errorf("%w: file is nil", ErrInvalidFile)
	}
	if file.ID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, ErrEmptyID)
	}
	return nil
}

// ValidateSection validates a Section before it is persisted.
//
// Validation rules:
//   - ID and FileID must be set
//   - Index must not be negative
//   - At least one chunk
func ValidateSection(section *Section) error {
	if section == nil {
		return fmt.Errorf("%w: section is nil", ErrInvalidSection)
	}
	if section.ID == uuid.Nil || section.FileID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrInvalidSection, ErrEmptyID)
	}
	if section.Index < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSection, ErrNegativeIndex)
	}
	if len(section.Chunks) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSection, ErrEmptySection)
	}
	return nil
}

// ValidateChunk validates a Chunk before it is persisted.
// dimension is the expected embedding length; zero skips the length check.
func ValidateChunk(chunk *Chunk, dimension int) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.ID == uuid.Nil || chunk.SectionID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyID)
	}
	if chunk.Index < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeIndex)
	}
	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: chunk %s: %w", ErrInvalidChunk, chunk.ID, ErrMissingEmbedding)
	}
	if dimension > 0 && len(chunk.Embedding) != dimension {
		return fmt.Errorf("%w: chunk %s: got %d, want %d: %w",
			ErrInvalidChunk, chunk.ID, len(chunk.Embedding), dimension, ErrDimensionMismatch)
	}
	return nil
}
