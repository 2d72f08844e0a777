package store

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/model"
)

const (
	neuronPrefix = "neuron:"
	rootPrefix   = "root:"
)

func neuronKey(id string) []byte { return []byte(neuronPrefix + id) }
func rootKey(root string) []byte { return []byte(rootPrefix + root) }

// encodeNeuron packs a Neuron as: uint32 metadata length, msgpack-encoded
// metadata (everything but the embedding), then the embedding as raw f32
// little-endian bytes — spec.md §4.5's "embedding as plain float array"
// within a single record, kept out of the msgpack encoding so it can be
// read back with no deserialization pass.
func encodeNeuron(n model.Neuron) ([]byte, error) {
	meta, err := encodeValue(n)
	if err != nil {
		return nil, err
	}
	emb := encodeEmbedding(n.Embedding)
	out := make([]byte, 4+len(meta)+len(emb))
	binary.LittleEndian.PutUint32(out, uint32(len(meta)))
	copy(out[4:], meta)
	copy(out[4+len(meta):], emb)
	return out, nil
}

func decodeNeuron(buf []byte) (model.Neuron, error) {
	if len(buf) < 4 {
		return model.Neuron{}, fmt.Errorf("store: neuron record too short")
	}
	metaLen := binary.LittleEndian.Uint32(buf)
	if int(4+metaLen) > len(buf) {
		return model.Neuron{}, fmt.Errorf("store: neuron record truncated")
	}
	var n model.Neuron
	if err := decodeValue(buf[4:4+metaLen], &n); err != nil {
		return model.Neuron{}, err
	}
	n.Embedding = decodeEmbedding(buf[4+metaLen:])
	return n, nil
}

// NeuronStore persists Neuron records and the merkleRoot -> id secondary
// index that lets verifyNeuron / getNeuronByMerkleRoot avoid a full scan.
type NeuronStore struct {
	kv kv.Store
}

// NewNeuronStore wraps kv as a NeuronStore.
func NewNeuronStore(store kv.Store) *NeuronStore {
	return &NeuronStore{kv: store}
}

// Put writes n and, if n.MerkleRoot is set, its root secondary index entry.
func (s *NeuronStore) Put(ctx context.Context, n model.Neuron) error {
	buf, err := encodeNeuron(n)
	if err != nil {
		return err
	}
	ops := []kv.WriteOp{{Key: neuronKey(n.ID), Value: buf}}
	if n.MerkleRoot != "" {
		ops = append(ops, kv.WriteOp{Key: rootKey(n.MerkleRoot), Value: []byte(n.ID)})
	}
	return s.kv.Batch(ctx, ops)
}

// Get returns the neuron stored under id, or kv.ErrNotFound.
func (s *NeuronStore) Get(ctx context.Context, id string) (model.Neuron, error) {
	buf, err := s.kv.Get(ctx, neuronKey(id))
	if err != nil {
		return model.Neuron{}, err
	}
	return decodeNeuron(buf)
}

// GetByMerkleRoot resolves root via the secondary index, then loads the
// neuron it points at.
func (s *NeuronStore) GetByMerkleRoot(ctx context.Context, root string) (model.Neuron, error) {
	id, err := s.kv.Get(ctx, rootKey(root))
	if err != nil {
		return model.Neuron{}, err
	}
	return s.Get(ctx, string(id))
}

// Delete removes n's record and its root index entry. Callers are
// responsible for cascading synapse deletion (pkg/graph).
func (s *NeuronStore) Delete(ctx context.Context, n model.Neuron) error {
	ops := []kv.WriteOp{{Key: neuronKey(n.ID), Delete: true}}
	if n.MerkleRoot != "" {
		ops = append(ops, kv.WriteOp{Key: rootKey(n.MerkleRoot), Delete: true})
	}
	return s.kv.Batch(ctx, ops)
}

// All enumerates every live neuron via the neuron: prefix, in key
// (lexicographic id) order.
func (s *NeuronStore) All(ctx context.Context, fn func(model.Neuron) bool) error {
	var decodeErr error
	err := s.kv.Scan(ctx, []byte(neuronPrefix), func(e kv.Entry) bool {
		n, err := decodeNeuron(e.Value)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(n)
	})
	if decodeErr != nil {
		return decodeErr
	}
	return err
}
