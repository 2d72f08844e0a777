package store

import (
	"context"

	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/model"
)

const (
	synapsePrefix = "synapse:"
	sourcePrefix  = "source:"
	targetPrefix  = "target:"
)

func synapseKey(id string) []byte            { return []byte(synapsePrefix + id) }
func sourceIndexKey(srcID, id string) []byte  { return []byte(sourcePrefix + srcID + ":" + id) }
func targetIndexKey(tgtID, id string) []byte  { return []byte(targetPrefix + tgtID + ":" + id) }
func sourceIndexPrefix(srcID string) []byte   { return []byte(sourcePrefix + srcID + ":") }
func targetIndexPrefix(tgtID string) []byte   { return []byte(targetPrefix + tgtID + ":") }

// SynapseStore persists Synapse records plus the source:/target: secondary
// indexes that make outgoing/incoming enumeration an O(degree) prefix scan
// instead of a full-table scan (spec.md §4.5).
type SynapseStore struct {
	kv kv.Store
}

// NewSynapseStore wraps kv as a SynapseStore.
func NewSynapseStore(store kv.Store) *SynapseStore {
	return &SynapseStore{kv: store}
}

// Put writes s and both of its secondary index entries in one batch.
func (st *SynapseStore) Put(ctx context.Context, s model.Synapse) error {
	buf, err := encodeValue(s)
	if err != nil {
		return err
	}
	return st.kv.Batch(ctx, []kv.WriteOp{
		{Key: synapseKey(s.ID), Value: buf},
		{Key: sourceIndexKey(s.SourceID, s.ID), Value: []byte(s.ID)},
		{Key: targetIndexKey(s.TargetID, s.ID), Value: []byte(s.ID)},
	})
}

// Get returns the synapse stored under id, or kv.ErrNotFound.
func (st *SynapseStore) Get(ctx context.Context, id string) (model.Synapse, error) {
	buf, err := st.kv.Get(ctx, synapseKey(id))
	if err != nil {
		return model.Synapse{}, err
	}
	var s model.Synapse
	if err := decodeValue(buf, &s); err != nil {
		return model.Synapse{}, err
	}
	return s, nil
}

// Delete removes s's record and both secondary-index entries in one batch,
// matching spec.md §4.5's requirement that multi-key deletes are atomic.
func (st *SynapseStore) Delete(ctx context.Context, s model.Synapse) error {
	return st.kv.Batch(ctx, []kv.WriteOp{
		{Key: synapseKey(s.ID), Delete: true},
		{Key: sourceIndexKey(s.SourceID, s.ID), Delete: true},
		{Key: targetIndexKey(s.TargetID, s.ID), Delete: true},
	})
}

// Outgoing returns every synapse whose SourceID is id, via the source:
// prefix index — O(out-degree), not O(total synapse count).
func (st *SynapseStore) Outgoing(ctx context.Context, id string) ([]model.Synapse, error) {
	return st.byIndex(ctx, sourceIndexPrefix(id))
}

// Incoming returns every synapse whose TargetID is id, via the target:
// prefix index.
func (st *SynapseStore) Incoming(ctx context.Context, id string) ([]model.Synapse, error) {
	return st.byIndex(ctx, targetIndexPrefix(id))
}

func (st *SynapseStore) byIndex(ctx context.Context, prefix []byte) ([]model.Synapse, error) {
	var ids []string
	err := st.kv.Scan(ctx, prefix, func(e kv.Entry) bool {
		ids = append(ids, string(e.Value))
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Synapse, 0, len(ids))
	for _, id := range ids {
		s, err := st.Get(ctx, id)
		if err != nil {
			continue // deleted between the index scan and the record read
		}
		out = append(out, s)
	}
	return out, nil
}

// All enumerates every synapse via the synapse: prefix.
func (st *SynapseStore) All(ctx context.Context, fn func(model.Synapse) bool) error {
	var decodeErr error
	err := st.kv.Scan(ctx, []byte(synapsePrefix), func(e kv.Entry) bool {
		var s model.Synapse
		if decErr := decodeValue(e.Value, &s); decErr != nil {
			decodeErr = decErr
			return false
		}
		return fn(s)
	})
	if decodeErr != nil {
		return decodeErr
	}
	return err
}
