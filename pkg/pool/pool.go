// Package pool provides object pooling for the HNSW index's hot insert/search
// path to reduce allocations, per spec.md §4.2's beam-search expansion.
//
// Pooled objects:
//   - Scratch float32 slices (query normalization before a search/insert)
//   - Visited-id sets (beam search's per-call "already queued" marker)
//   - Candidate/result id slices (beam search's output before scoring)
//
// Usage:
//
//	buf := pool.GetFloat32Slice(dim)
//	defer pool.PutFloat32Slice(buf)
//	normalized := vector.NormalizeInto(buf, query)
package pool

import "sync"

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active.
	Enabled bool

	// MaxSize limits the capacity kept when returning a slice to its pool;
	// larger scratch buffers are dropped instead of retained.
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 4096,
}

// Configure sets global pool configuration. Should be called early during
// initialization, before the index starts serving inserts/searches.
func Configure(cfg PoolConfig) {
	globalConfig = cfg
}

// IsEnabled returns whether pooling is active.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Float32 scratch slice pool (query normalization)
// =============================================================================

var float32SlicePool = sync.Pool{
	New: func() any {
		return make([]float32, 0, 256)
	},
}

// GetFloat32Slice returns a float32 scratch slice of length n from the pool.
func GetFloat32Slice(n int) []float32 {
	if !globalConfig.Enabled {
		return make([]float32, n)
	}
	buf := float32SlicePool.Get().([]float32)
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// PutFloat32Slice returns a float32 scratch slice to the pool.
func PutFloat32Slice(buf []float32) {
	if !globalConfig.Enabled || cap(buf) > globalConfig.MaxSize {
		return
	}
	float32SlicePool.Put(buf[:0]) //nolint:staticcheck
}

// =============================================================================
// Visited-set pool (beam search traversal)
// =============================================================================

var visitedPool = sync.Pool{
	New: func() any {
		return make(map[string]bool, 64)
	},
}

// GetVisited returns an empty visited-id set from the pool.
func GetVisited() map[string]bool {
	if !globalConfig.Enabled {
		return make(map[string]bool, 64)
	}
	return visitedPool.Get().(map[string]bool)
}

// PutVisited clears and returns a visited-id set to the pool.
func PutVisited(m map[string]bool) {
	if !globalConfig.Enabled || m == nil {
		return
	}
	if len(m) > globalConfig.MaxSize {
		return
	}
	for k := range m {
		delete(m, k)
	}
	visitedPool.Put(m)
}

// =============================================================================
// ID slice pool (beam search candidate/result output)
// =============================================================================

var idSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 64)
	},
}

// GetIDSlice returns an empty id slice from the pool.
func GetIDSlice() []string {
	if !globalConfig.Enabled {
		return make([]string, 0, 64)
	}
	return idSlicePool.Get().([]string)[:0]
}

// PutIDSlice returns an id slice to the pool.
func PutIDSlice(s []string) {
	if !globalConfig.Enabled || cap(s) > globalConfig.MaxSize {
		return
	}
	idSlicePool.Put(s[:0]) //nolint:staticcheck
}
