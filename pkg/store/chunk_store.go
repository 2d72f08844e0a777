package store

import (
	"context"
	"fmt"

	"github.com/nmtsys/memstore/pkg/chunk"
	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/merkle"
)

const chunkPrefix = "chunk:"

func chunkKey(hash merkle.Digest) []byte {
	return []byte(fmt.Sprintf("%s%s", chunkPrefix, hash))
}

// ChunkStore persists content-addressed chunks keyed by hash. Identical
// bytes always land on the same key, so Put is naturally idempotent —
// dedup falls out of the key scheme rather than an explicit check.
type ChunkStore struct {
	kv kv.Store
}

// NewChunkStore wraps kv as a ChunkStore.
func NewChunkStore(store kv.Store) *ChunkStore {
	return &ChunkStore{kv: store}
}

// Put writes c under chunk:<hash>, overwriting nothing meaningfully new
// since content-addressed chunks with the same hash are byte-identical.
func (s *ChunkStore) Put(ctx context.Context, c chunk.Chunk) error {
	buf, err := encodeValue(c)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, chunkKey(c.Hash), buf)
}

// PutBatch writes multiple chunks atomically.
func (s *ChunkStore) PutBatch(ctx context.Context, chunks []chunk.Chunk) error {
	ops := make([]kv.WriteOp, len(chunks))
	for i, c := range chunks {
		buf, err := encodeValue(c)
		if err != nil {
			return err
		}
		ops[i] = kv.WriteOp{Key: chunkKey(c.Hash), Value: buf}
	}
	return s.kv.Batch(ctx, ops)
}

// Get returns the chunk stored under hash, or kv.ErrNotFound.
func (s *ChunkStore) Get(ctx context.Context, hash merkle.Digest) (chunk.Chunk, error) {
	buf, err := s.kv.Get(ctx, chunkKey(hash))
	if err != nil {
		return chunk.Chunk{}, err
	}
	var c chunk.Chunk
	if err := decodeValue(buf, &c); err != nil {
		return chunk.Chunk{}, fmt.Errorf("store: decoding chunk %s: %w", hash, err)
	}
	return c, nil
}

// Delete removes the chunk stored under hash.
func (s *ChunkStore) Delete(ctx context.Context, hash merkle.Digest) error {
	return s.kv.Delete(ctx, chunkKey(hash))
}

// Count walks every chunk record, counting them lazily (spec.md §4.5: "stats
// are counted lazily" rather than maintained incrementally on every write).
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.kv.Scan(ctx, []byte(chunkPrefix), func(kv.Entry) bool {
		n++
		return true
	})
	return n, err
}

// GC deletes every stored chunk whose hash is not reported live by isLive.
// The caller supplies isLive (typically backed by a scan of every neuron's
// ChunkHashes) since chunk liveness is a cross-store concern the chunk
// store itself has no way to determine.
func (s *ChunkStore) GC(ctx context.Context, isLive func(hash string) bool) (int, error) {
	var toDelete []merkle.Digest
	err := s.kv.Scan(ctx, []byte(chunkPrefix), func(e kv.Entry) bool {
		hash := string(e.Key[len(chunkPrefix):])
		if !isLive(hash) {
			toDelete = append(toDelete, merkle.Digest(hash))
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	ops := make([]kv.WriteOp, len(toDelete))
	for i, h := range toDelete {
		ops[i] = kv.WriteOp{Key: chunkKey(h), Delete: true}
	}
	if len(ops) > 0 {
		if err := s.kv.Batch(ctx, ops); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}
