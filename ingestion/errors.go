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


package ingestion

import "errors"

var (
	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNilSource is returned when Consume is handed a nil source.
	ErrNilSource = errors.New("file source is nil")

	// ErrEmptyFileID is returned when a source reports the zero UUID.
	ErrEmptyFileID = errors.New("file source has empty id")

	// ErrDuplicateSource is returned when ConsumeAll sees the same file id twice.
	ErrDuplicateSource = errors.New("duplicate file source")

	// ErrFileVanished is returned when the file record disappears while its
	// content is being indexed.
	ErrFileVanished = errors.New("file record vanished during indexing")
)
