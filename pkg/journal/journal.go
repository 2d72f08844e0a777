package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/nmtsys/memstore/pkg/kv"
	"go.uber.org/zap"
)

// Operation is the kind of mutation a ChangeEntry records.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeEntry is one durable record of a user-visible state mutation
// (spec.md §3, §4.6).
type ChangeEntry struct {
	Sequence  uint64            `msgpack:"sequence"`
	Type      string            `msgpack:"type"`
	Operation Operation         `msgpack:"operation"`
	EntityID  string            `msgpack:"entity_id"`
	Data      []byte            `msgpack:"data"`
	Clock     Clock             `msgpack:"vector_clock"`
	Timestamp time.Time         `msgpack:"timestamp"`
	NodeID    string            `msgpack:"node_id"`
	Metadata  map[string]string `msgpack:"metadata,omitempty"`
}

const (
	entryPrefix  = "journal:seq:"
	entityPrefix = "journal:entity:"
	typePrefix   = "journal:type:"
	metaSeqKey   = "journal:meta:sequence"
)

func seqKey(seq uint64) []byte {
	buf := make([]byte, len(entryPrefix)+8)
	copy(buf, entryPrefix)
	binary.BigEndian.PutUint64(buf[len(entryPrefix):], seq)
	return buf
}

func entityKey(entityID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", entityPrefix, entityID, seq))
}

func entityPrefixFor(entityID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", entityPrefix, entityID))
}

func typeKey(typ string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", typePrefix, typ, seq))
}

func typePrefixFor(typ string) []byte {
	return []byte(fmt.Sprintf("%s%s:", typePrefix, typ))
}

// Journal is the append-only, strictly-sequenced change log. Appends are
// serialized through mu so concurrent writers can never skip or reuse a
// sequence number (spec.md §4.6).
type Journal struct {
	kv     kv.Store
	nodeID string
	log    *zap.Logger

	mu  sync.Mutex
	seq uint64
}

// Open loads (or initializes) the journal stored in store for nodeID. A
// corrupted meta record resets the sequence to 0 and rewrites it, per
// spec.md §4.6.
func Open(ctx context.Context, store kv.Store, nodeID string, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	j := &Journal{kv: store, nodeID: nodeID, log: log}

	buf, err := store.Get(ctx, []byte(metaSeqKey))
	switch {
	case err == kv.ErrNotFound:
		j.seq = 0
	case err != nil:
		return nil, err
	case len(buf) != 8:
		log.Warn("journal meta record corrupt, resetting sequence to 0")
		j.seq = 0
		if werr := j.writeMeta(ctx); werr != nil {
			return nil, werr
		}
	default:
		j.seq = binary.BigEndian.Uint64(buf)
	}
	return j, nil
}

func (j *Journal) writeMeta(ctx context.Context) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, j.seq)
	return j.kv.Put(ctx, []byte(metaSeqKey), buf)
}

// Append assigns the next sequence number to entry and durably writes it
// along with its entity/type secondary index entries.
func (j *Journal) Append(ctx context.Context, entry ChangeEntry) (ChangeEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry.Sequence = j.seq
	entry.NodeID = j.nodeID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	buf, err := encodeValue(entry)
	if err != nil {
		j.seq--
		return ChangeEntry{}, err
	}

	ops := []kv.WriteOp{
		{Key: seqKey(entry.Sequence), Value: buf},
		{Key: entityKey(entry.EntityID, entry.Sequence), Value: buf},
		{Key: typeKey(entry.Type, entry.Sequence), Value: buf},
	}
	if err := j.kv.Batch(ctx, ops); err != nil {
		j.seq--
		return ChangeEntry{}, err
	}
	if err := j.writeMeta(ctx); err != nil {
		return ChangeEntry{}, err
	}
	return entry, nil
}

// AppendBatch assigns contiguous sequence numbers to every entry in
// entries and writes them atomically: either all entries are durable with
// their sequences, or (on error) none are, and the in-memory counter is
// rolled back.
func (j *Journal) AppendBatch(ctx context.Context, entries []ChangeEntry) ([]ChangeEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	startSeq := j.seq
	out := make([]ChangeEntry, len(entries))
	var ops []kv.WriteOp

	for i, entry := range entries {
		j.seq++
		entry.Sequence = j.seq
		entry.NodeID = j.nodeID
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now()
		}
		buf, err := encodeValue(entry)
		if err != nil {
			j.seq = startSeq
			return nil, err
		}
		ops = append(ops,
			kv.WriteOp{Key: seqKey(entry.Sequence), Value: buf},
			kv.WriteOp{Key: entityKey(entry.EntityID, entry.Sequence), Value: buf},
			kv.WriteOp{Key: typeKey(entry.Type, entry.Sequence), Value: buf},
		)
		out[i] = entry
	}

	if err := j.kv.Batch(ctx, ops); err != nil {
		j.seq = startSeq
		return nil, err
	}
	if err := j.writeMeta(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeEntry(buf []byte) (ChangeEntry, error) {
	var e ChangeEntry
	err := decodeValue(buf, &e)
	return e, err
}

// Get returns the entry at seq, or kv.ErrNotFound.
func (j *Journal) Get(ctx context.Context, seq uint64) (ChangeEntry, error) {
	buf, err := j.kv.Get(ctx, seqKey(seq))
	if err != nil {
		return ChangeEntry{}, err
	}
	e, err := decodeEntry(buf)
	if err != nil {
		j.log.Warn("journal: corrupt entry skipped", zap.Uint64("sequence", seq), zap.Error(err))
		return ChangeEntry{}, kv.ErrNotFound
	}
	return e, nil
}

// GetRange returns every entry with from <= sequence <= to, in ascending
// sequence order. Corrupt entries are logged and skipped rather than
// aborting the scan.
func (j *Journal) GetRange(ctx context.Context, from, to uint64) ([]ChangeEntry, error) {
	var out []ChangeEntry
	err := j.kv.Scan(ctx, []byte(entryPrefix), func(e kv.Entry) bool {
		seq := binary.BigEndian.Uint64(e.Key[len(entryPrefix):])
		if seq < from {
			return true
		}
		if seq > to {
			return false
		}
		entry, derr := decodeEntry(e.Value)
		if derr != nil {
			j.log.Warn("journal: corrupt entry skipped", zap.Uint64("sequence", seq), zap.Error(derr))
			return true
		}
		out = append(out, entry)
		return true
	})
	return out, err
}

// GetAfterSequence returns every entry with sequence > after, ascending.
func (j *Journal) GetAfterSequence(ctx context.Context, after uint64) ([]ChangeEntry, error) {
	return j.GetRange(ctx, after+1, ^uint64(0))
}

// GetByEntity returns every entry recorded against entityID, ascending by
// sequence, via the entity: secondary index.
func (j *Journal) GetByEntity(ctx context.Context, entityID string) ([]ChangeEntry, error) {
	var out []ChangeEntry
	err := j.kv.Scan(ctx, entityPrefixFor(entityID), func(e kv.Entry) bool {
		entry, derr := decodeEntry(e.Value)
		if derr != nil {
			j.log.Warn("journal: corrupt entity-index entry skipped", zap.String("entity_id", entityID), zap.Error(derr))
			return true
		}
		out = append(out, entry)
		return true
	})
	return out, err
}

// GetByType returns every entry of the given type, ascending by sequence,
// via the type: secondary index.
func (j *Journal) GetByType(ctx context.Context, typ string) ([]ChangeEntry, error) {
	var out []ChangeEntry
	err := j.kv.Scan(ctx, typePrefixFor(typ), func(e kv.Entry) bool {
		entry, derr := decodeEntry(e.Value)
		if derr != nil {
			j.log.Warn("journal: corrupt type-index entry skipped", zap.String("type", typ), zap.Error(derr))
			return true
		}
		out = append(out, entry)
		return true
	})
	return out, err
}

// Compact deletes every entry (and its secondary index entries) with
// sequence < beforeSeq.
func (j *Journal) Compact(ctx context.Context, beforeSeq uint64) error {
	var ops []kv.WriteOp
	err := j.kv.Scan(ctx, []byte(entryPrefix), func(e kv.Entry) bool {
		seq := binary.BigEndian.Uint64(e.Key[len(entryPrefix):])
		if seq >= beforeSeq {
			return false
		}
		entry, derr := decodeEntry(e.Value)
		if derr != nil {
			ops = append(ops, kv.WriteOp{Key: append([]byte(nil), e.Key...), Delete: true})
			return true
		}
		ops = append(ops,
			kv.WriteOp{Key: seqKey(seq), Delete: true},
			kv.WriteOp{Key: entityKey(entry.EntityID, seq), Delete: true},
			kv.WriteOp{Key: typeKey(entry.Type, seq), Delete: true},
		)
		return true
	})
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return j.kv.Batch(ctx, ops)
}

// Sequence returns the last assigned sequence number.
func (j *Journal) Sequence() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}
