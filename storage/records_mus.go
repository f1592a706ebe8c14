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
	"time"

	"github.com/google/uuid"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/kbase/core"
)

// Record serializers follow the mus-go serializer shape: Marshal writes into
// a buffer sized by Size, Unmarshal returns the value and bytes consumed.

var (
	KnowledgeFileMUS = knowledgeFileMUS{}
	SectionMUS       = sectionMUS{}
	ChunkMUS         = chunkMUS{}
	VectorEntryMUS   = vectorEntryMUS{}
)

type knowledgeFileMUS struct{}

// ProcessedAt is stored as Unix nanoseconds, with 0 for the zero time.
func processedAtNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func (knowledgeFileMUS) Marshal(file core.KnowledgeFile, bs []byte) int {
	e := &encoder{buf: bs}
	e.uuid(file.ID)
	e.n += ord.String.Marshal(file.Name, e.buf[e.n:])
	e.bytes(file.ContentHash)
	e.n += varint.Int64.Marshal(processedAtNanos(file.ProcessedAt), e.buf[e.n:])
	e.n += varint.Int.Marshal(int(file.Status), e.buf[e.n:])
	return e.n
}

func (knowledgeFileMUS) Unmarshal(bs []byte) (core.KnowledgeFile, int, error) {
	d := &decoder{data: bs}
	var file core.KnowledgeFile
	file.ID = d.uuid()
	file.Name = d.str()
	file.ContentHash = d.bytes()
	if ns := d.int64(); ns != 0 {
		file.ProcessedAt = time.Unix(0, ns).UTC()
	}
	file.Status = core.IndexingStatus(d.int())
	return file, d.off, d.err
}

func (knowledgeFileMUS) Size(file core.KnowledgeFile) int {
	return uuidSize +
		ord.String.Size(file.Name) +
		bytesSize(file.ContentHash) +
		varint.Int64.Size(processedAtNanos(file.ProcessedAt)) +
		varint.Int.Size(int(file.Status))
}

func (s knowledgeFileMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

// sectionMUS never writes Chunks; they live in the chunk store.
type sectionMUS struct{}

func (sectionMUS) Marshal(section core.Section, bs []byte) int {
	e := &encoder{buf: bs}
	e.uuid(section.ID)
	e.uuid(section.FileID)
	e.n += varint.Int.Marshal(section.Index, e.buf[e.n:])
	e.n += ord.String.Marshal(section.Summary, e.buf[e.n:])
	e.n += ord.String.Marshal(section.AdditionalContext, e.buf[e.n:])
	return e.n
}

func (sectionMUS) Unmarshal(bs []byte) (core.Section, int, error) {
	d := &decoder{data: bs}
	var section core.Section
	section.ID = d.uuid()
	section.FileID = d.uuid()
	section.Index = d.int()
	section.Summary = d.str()
	section.AdditionalContext = d.str()
	return section, d.off, d.err
}

func (sectionMUS) Size(section core.Section) int {
	return 2*uuidSize +
		varint.Int.Size(section.Index) +
		ord.String.Size(section.Summary) +
		ord.String.Size(section.AdditionalContext)
}

func (s sectionMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type chunkMUS struct{}

func (chunkMUS) Marshal(chunk core.Chunk, bs []byte) int {
	e := &encoder{buf: bs}
	e.uuid(chunk.ID)
	e.uuid(chunk.SectionID)
	e.uuid(chunk.FileID)
	e.n += varint.Int.Marshal(chunk.Index, e.buf[e.n:])
	e.n += ord.String.Marshal(chunk.Content, e.buf[e.n:])
	e.n += varint.Int.Marshal(chunk.Tokens, e.buf[e.n:])
	e.vector(chunk.Embedding)
	return e.n
}

func (chunkMUS) Unmarshal(bs []byte) (core.Chunk, int, error) {
	d := &decoder{data: bs}
	var chunk core.Chunk
	chunk.ID = d.uuid()
	chunk.SectionID = d.uuid()
	chunk.FileID = d.uuid()
	chunk.Index = d.int()
	chunk.Content = d.str()
	chunk.Tokens = d.int()
	chunk.Embedding = d.vector()
	return chunk, d.off, d.err
}

func (chunkMUS) Size(chunk core.Chunk) int {
	return 3*uuidSize +
		varint.Int.Size(chunk.Index) +
		ord.String.Size(chunk.Content) +
		varint.Int.Size(chunk.Tokens) +
		vectorSize(chunk.Embedding)
}

func (s chunkMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type vectorEntryMUS struct{}

func (vectorEntryMUS) Marshal(entry VectorEntry, bs []byte) int {
	e := &encoder{buf: bs}
	e.n += varint.Int64.Marshal(entry.Seq, e.buf[e.n:])
	e.vector(entry.Vector)
	return e.n
}

func (vectorEntryMUS) Unmarshal(bs []byte) (VectorEntry, int, error) {
	d := &decoder{data: bs}
	var entry VectorEntry
	entry.Seq = d.int64()
	entry.Vector = d.vector()
	return entry, d.off, d.err
}

func (vectorEntryMUS) Size(entry VectorEntry) int {
	return varint.Int64.Size(entry.Seq) + vectorSize(entry.Vector)
}

func (s vectorEntryMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

func bytesSize(b []byte) int {
	return varint.Int.Size(len(b)) + len(b)
}

// vectorSize encodes nil as length -1 so a missing embedding survives a round trip.
func vectorSize(v []float32) int {
	if v == nil {
		return varint.Int.Size(-1)
	}
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

type encoder struct {
	buf []byte
	n   int
}

func (e *encoder) uuid(id uuid.UUID) {
	e.n += copy(e.buf[e.n:], id[:])
}

func (e *encoder) bytes(b []byte) {
	e.n += varint.Int.Marshal(len(b), e.buf[e.n:])
	e.n += copy(e.buf[e.n:], b)
}

func (e *encoder) vector(v []float32) {
	if v == nil {
		e.n += varint.Int.Marshal(-1, e.buf[e.n:])
		return
	}
	e.n += varint.Int.Marshal(len(v), e.buf[e.n:])
	for _, f := range v {
		e.n += raw.Float32.Marshal(f, e.buf[e.n:])
	}
}

// decoder reads fields in order and latches the first error.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) uuid() uuid.UUID {
	if d.err != nil {
		return uuid.Nil
	}
	if len(d.data)-d.off < uuidSize {
		d.err = ErrTruncatedData
		return uuid.Nil
	}
	var id uuid.UUID
	d.off += copy(id[:], d.data[d.off:d.off+uuidSize])
	return id
}

func (d *decoder) str() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) bytes() []byte {
	length := d.int()
	if d.err != nil {
		return nil
	}
	if length < 0 || len(d.data)-d.off < length {
		d.err = ErrTruncatedData
		return nil
	}
	if length == 0 {
		return nil
	}
	out := make([]byte, length)
	d.off += copy(out, d.data[d.off:d.off+length])
	return out
}

func (d *decoder) vector() []float32 {
	length := d.int()
	if d.err != nil || length < 0 {
		return nil
	}
	if length*4 > len(d.data)-d.off {
		d.err = ErrTruncatedData
		return nil
	}
	out := make([]float32, length)
	for i := range out {
		v, n, err := raw.Float32.Unmarshal(d.data[d.off:])
		if err != nil {
			d.err = err
			return nil
		}
		d.off += n
		out[i] = v
	}
	return out
}
