package store

import (
	"context"

	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/model"
)

const attractorPrefix = "attractor:"

func attractorKey(id string) []byte { return []byte(attractorPrefix + id) }

// AttractorStore persists Attractor records. Unlike NeuronStore, the
// embedding here is small (one per goal region, not one per memory) and
// isn't looked up by the hot HNSW path, so it's encoded as a plain msgpack
// field rather than split into the neuron store's raw-f32 layout.
type AttractorStore struct {
	kv kv.Store
}

// NewAttractorStore wraps kv as an AttractorStore.
func NewAttractorStore(store kv.Store) *AttractorStore {
	return &AttractorStore{kv: store}
}

// Put writes a.
func (s *AttractorStore) Put(ctx context.Context, a model.Attractor) error {
	buf, err := encodeValue(a)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, attractorKey(a.ID), buf)
}

// Get returns the attractor stored under id, or kv.ErrNotFound.
func (s *AttractorStore) Get(ctx context.Context, id string) (model.Attractor, error) {
	buf, err := s.kv.Get(ctx, attractorKey(id))
	if err != nil {
		return model.Attractor{}, err
	}
	var a model.Attractor
	if err := decodeValue(buf, &a); err != nil {
		return model.Attractor{}, err
	}
	return a, nil
}

// Delete removes the attractor stored under id.
func (s *AttractorStore) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, attractorKey(id))
}

// All enumerates every attractor via the attractor: prefix, in key order.
func (s *AttractorStore) All(ctx context.Context, fn func(model.Attractor) bool) error {
	var decodeErr error
	err := s.kv.Scan(ctx, []byte(attractorPrefix), func(e kv.Entry) bool {
		var a model.Attractor
		if err := decodeValue(e.Value, &a); err != nil {
			decodeErr = err
			return false
		}
		return fn(a)
	})
	if decodeErr != nil {
		return decodeErr
	}
	return err
}
