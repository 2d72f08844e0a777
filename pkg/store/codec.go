// Package store implements the typed persistence layer spec.md §4.5
// describes: ChunkStore, NeuronStore, SynapseStore, and IndexStore, each
// built on the ordered-key pkg/kv.Store with secondary indexes maintained
// by prefix-keyed pointer records.
//
// Record bodies are encoded with msgpack (github.com/vmihailenco/msgpack/v5)
// except embeddings, which spec.md §6 requires as raw little-endian f32
// arrays so they can be mapped directly into a SIMD-ready buffer on read
// without a deserialization pass.
package store

import (
	"encoding/binary"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func encodeValue(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decodeValue(buf []byte, v any) error {
	return msgpack.Unmarshal(buf, v)
}
