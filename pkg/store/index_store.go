package store

import (
	"bytes"
	"context"

	"github.com/nmtsys/memstore/pkg/hnsw"
	"github.com/nmtsys/memstore/pkg/kv"
)

const indexPrefix = "index:"

func indexKey(name string) []byte { return []byte(indexPrefix + name) }

// IndexStore persists named HNSW snapshots (spec.md §4.5). pkg/nmt's Store
// saves under the fixed name "primary" in Close, and loads it on startup.
type IndexStore struct {
	kv kv.Store
}

// NewIndexStore wraps kv as an IndexStore.
func NewIndexStore(store kv.Store) *IndexStore {
	return &IndexStore{kv: store}
}

// Save serializes idx under name, overwriting any prior snapshot.
func (s *IndexStore) Save(ctx context.Context, name string, idx *hnsw.Index) error {
	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		return err
	}
	return s.kv.Put(ctx, indexKey(name), buf.Bytes())
}

// Load deserializes the snapshot stored under name. A corrupted or missing
// snapshot surfaces as an error; callers may fall back to a fresh index.
func (s *IndexStore) Load(ctx context.Context, name string) (*hnsw.Index, error) {
	buf, err := s.kv.Get(ctx, indexKey(name))
	if err != nil {
		return nil, err
	}
	return hnsw.Load(bytes.NewReader(buf))
}

// List returns the names of every stored snapshot.
func (s *IndexStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.kv.Scan(ctx, []byte(indexPrefix), func(e kv.Entry) bool {
		names = append(names, string(e.Key[len(indexPrefix):]))
		return true
	})
	return names, err
}

// Delete removes the snapshot stored under name.
func (s *IndexStore) Delete(ctx context.Context, name string) error {
	return s.kv.Delete(ctx, indexKey(name))
}
