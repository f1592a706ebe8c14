package badger

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Key prefixes for different data types. Each ends in ':' so no prefix is a
// prefix of another.
const (
	filePrefix         = "kfile:"
	sectionPrefix      = "ksec:"
	sectionIndexPrefix = "ksecidx:"
	chunkPrefix        = "kchk:"
	chunkSectionPrefix = "kchksec:"
	chunkFilePrefix    = "kchkfile:"
	vectorPrefix       = "kvec:"
	vectorSeq          = "kvecseq"
)

func makeIDKey(prefix string, id uuid.UUID) []byte {
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id[:])
	return buf
}

func makeFileKey(id uuid.UUID) []byte    { return makeIDKey(filePrefix, id) }
func makeSectionKey(id uuid.UUID) []byte { return makeIDKey(sectionPrefix, id) }
func makeChunkKey(id uuid.UUID) []byte   { return makeIDKey(chunkPrefix, id) }
func makeVectorKey(id uuid.UUID) []byte  { return makeIDKey(vectorPrefix, id) }

// makeOrderedKey generates a composite key prefix:owner:index.
// The index is written BigEndian so lexicographic order matches numeric order.
func makeOrderedKey(prefix string, owner uuid.UUID, index int) []byte {
	buf := make([]byte, len(prefix)+len(owner)+8)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], owner[:])
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makeSectionIndexKey generates the (file, index) lookup key for a section.
func makeSectionIndexKey(fileID uuid.UUID, index int) []byte {
	return makeOrderedKey(sectionIndexPrefix, fileID, index)
}

// makeChunkSectionKey generates the (section, index) lookup key for a chunk.
func makeChunkSectionKey(sectionID uuid.UUID, index int) []byte {
	return makeOrderedKey(chunkSectionPrefix, sectionID, index)
}

// makeChunkFileKey generates a composite key prefix:fileID:chunkID.
func makeChunkFileKey(fileID, chunkID uuid.UUID) []byte {
	buf := make([]byte, len(chunkFilePrefix)+2*len(fileID))
	offset := copy(buf, chunkFilePrefix)
	offset += copy(buf[offset:], fileID[:])
	copy(buf[offset:], chunkID[:])
	return buf
}

// makeOwnerPrefix generates the partial key for every entry owned by id.
func makeOwnerPrefix(prefix string, owner uuid.UUID) []byte {
	return makeIDKey(prefix, owner)
}

// hasPrefix checks if a byte slice has a given prefix
func hasPrefix(s, prefix []byte) bool {
	return len(s) >= len(prefix) && string(s[:len(prefix)]) == string(prefix)
}
