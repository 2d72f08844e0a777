package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory, map-backed Store whose Scan sorts matching
// keys before visiting them. Grounded on the
// teacher's pkg/storage/memory.go (same copy-on-read, full-mutex-protected
// approach); used by unit tests and standalone ephemeral deployments per
// spec.md §5.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	m.data[string(key)] = buf
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryStore) Scan(ctx context.Context, prefix []byte, fn func(Entry) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		v := m.data[k]
		buf := make([]byte, len(v))
		copy(buf, v)
		entries[i] = Entry{Key: []byte(k), Value: buf}
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if !fn(e) {
			break
		}
	}
	return nil
}

func (m *MemoryStore) Batch(ctx context.Context, ops []WriteOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.data, string(op.Key))
			continue
		}
		buf := make([]byte, len(op.Value))
		copy(buf, op.Value)
		m.data[string(op.Key)] = buf
	}
	return nil
}

// Compact is a no-op: the in-memory map holds no stale versions to reclaim.
func (m *MemoryStore) Compact(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
