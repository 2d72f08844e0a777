// Package chunk splits ingested bytes into content-addressed chunks, either
// fixed-size or content-defined (CDC), for the Merkle commitment engine
// (spec.md §4.1). Chunk identity is purely a function of its bytes: two
// documents sharing a run of bytes that lands on a chunk boundary in both
// produce byte-identical chunks, which the chunk store (pkg/store)
// deduplicates by hash.
package chunk

import "github.com/nmtsys/memstore/pkg/merkle"

// Default and bound constants from spec.md §4.1.
const (
	DefaultFixedSize = 4096
	MinChunkSize     = 2048
	MaxChunkSize     = 65536

	// rabinWindow is the rolling-hash window size in bytes.
	rabinWindow = 48
	// rabinMask selects the expected ~8 KiB average CDC chunk size.
	rabinMask = 0x1FFF
)

// Chunk is one content-addressed slice of an ingested document.
type Chunk struct {
	Index          int           `msgpack:"index"`
	Offset         int64         `msgpack:"offset"`
	Data           []byte        `msgpack:"data"`
	Hash           merkle.Digest `msgpack:"hash"`
	HasFingerprint bool          `msgpack:"has_fingerprint"`
	Fingerprint    uint32        `msgpack:"fingerprint"` // low 32 bits of the CDC rolling hash at the boundary; CDC only
}

// New hashes data and returns the Chunk record for it at the given index and
// byte offset within the document.
func New(index int, offset int64, data []byte) Chunk {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Chunk{
		Index:  index,
		Offset: offset,
		Data:   buf,
		Hash:   merkle.Hash(buf),
	}
}

// Verify reports whether c.Hash matches SHA3-256(c.Data), the chunk-level
// integrity check spec.md §4.1/§7 requires before trusting stored bytes.
func (c Chunk) Verify() bool {
	return merkle.Hash(c.Data) == c.Hash
}

// FixedSize slices data into chunks of exactly size bytes (the final chunk
// may be shorter). size <= 0 uses DefaultFixedSize.
func FixedSize(data []byte, size int) []Chunk {
	if size <= 0 {
		size = DefaultFixedSize
	}
	var chunks []Chunk
	for offset := 0; offset < len(data); offset += size {
		end := offset + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, New(len(chunks), int64(offset), data[offset:end]))
	}
	return chunks
}
