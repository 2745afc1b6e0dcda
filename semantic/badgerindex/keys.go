package badgerindex

import (
	"encoding/binary"

	"github.com/poiesic/loupe/core"
)

// Key prefixes for index data
const (
	chunkPrefix = "semchk"
)

// makeChunkKey generates a key for one embedded chunk of a document.
// Format: prefix:docID:ordinal
func makeChunkKey(doc core.ID, ordinal int) []byte {
	prefix := []byte(chunkPrefix + ":")
	buf := make([]byte, len(prefix)+12)
	offset := copy(buf, prefix)
	// BigEndian so keys sort by document, then chunk order.
	binary.BigEndian.PutUint64(buf[offset:], uint64(doc))
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(ordinal))
	return buf
}

// makeDocPrefix generates the key prefix covering all chunks of one document.
func makeDocPrefix(doc core.ID) []byte {
	prefix := []byte(chunkPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(doc))
	return buf
}
