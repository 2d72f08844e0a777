package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, []byte("k1"), []byte("v1")))
	v, err := s.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	require.NoError(t, s.Delete(ctx, []byte("k1")))
	_, err = s.Get(ctx, []byte("k1"))
	assert.ErrorIs(t, err, ErrNotFound, "expected ErrNotFound after delete")
}

func TestMemoryStoreScanOrderedByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	keys := []string{"chunk:c", "chunk:a", "chunk:b", "neuron:x"}
	for _, k := range keys {
		s.Put(ctx, []byte(k), []byte("v"))
	}

	var got []string
	err := s.Scan(ctx, []byte("chunk:"), func(e Entry) bool {
		got = append(got, string(e.Key))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk:a", "chunk:b", "chunk:c"}, got)
}

func TestMemoryStoreScanStopsEarly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"a:1", "a:2", "a:3"} {
		s.Put(ctx, []byte(k), []byte("v"))
	}

	count := 0
	s.Scan(ctx, []byte("a:"), func(e Entry) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count, "expected scan to stop after 2 entries")
}

func TestMemoryStoreBatchAtomicApply(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(ctx, []byte("k1"), []byte("old"))

	err := s.Batch(ctx, []WriteOp{
		{Key: []byte("k1"), Value: []byte("new")},
		{Key: []byte("k2"), Value: []byte("v2")},
		{Key: []byte("k1-deleted-later"), Delete: true},
	})
	require.NoError(t, err)

	v, _ := s.Get(ctx, []byte("k1"))
	assert.Equal(t, "new", string(v))
	v2, _ := s.Get(ctx, []byte("k2"))
	assert.Equal(t, "v2", string(v2))
}

func TestMemoryStorePutCopiesValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("original")
	s.Put(ctx, []byte("k"), buf)
	buf[0] = 'X'

	v, _ := s.Get(ctx, []byte("k"))
	assert.Equal(t, "original", string(v), "store value mutated by caller's buffer")
}
