// Package hnsw implements the Hierarchical Navigable Small World index
// spec.md §4.2 describes: layered proximity graph, greedy descent from an
// entry point, beam search at each level, tombstone-based soft delete, and
// compaction that rebuilds the graph without tombstoned nodes.
//
// Grounded on the teacher's pkg/search/hnsw_index.go (same layer/beam/heap
// structure); extended with tombstones, compact(), and binary
// serialize/deserialize, which the teacher's version did not have. Query
// normalization and beam-search scratch state (visited sets, candidate id
// slices) come from pkg/pool, grounded on the teacher's pkg/pool/pool.go
// sync.Pool pattern, to keep Search's hot path allocation-light.
//
// Concurrency: per spec.md §4.2, the index is single-writer/many-reader.
// Insert and Remove take the write lock; Search takes a read lock. Callers
// (the graph manager) are responsible for routing all mutation through one
// path so this invariant holds.
package hnsw

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/nmtsys/memstore/pkg/pool"
	"github.com/nmtsys/memstore/pkg/vector"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// index's configured dimension.
var ErrDimensionMismatch = errors.New("hnsw: embedding dimension mismatch")

// ErrAlreadyExists is returned by Add when id is already present and live —
// spec.md §4.2 calls inserting a duplicate id a usage error. A tombstoned id
// may be added again; the new node replaces the tombstoned one.
var ErrAlreadyExists = errors.New("hnsw: id already exists")

// Config holds the tunable HNSW parameters from spec.md §4.2.
type Config struct {
	M               int     // out-degree per layer (doubled at layer 0)
	EfConstruction  int     // beam width during insert
	EfSearch        int     // default beam width during search
	LevelMultiplier float64 // mL = 1/ln(M)
}

// DefaultConfig returns M=16, efConstruction=200, efSearch=50.
func DefaultConfig() Config {
	return Config{
		M:               16,
		EfConstruction:  200,
		EfSearch:        50,
		LevelMultiplier: 1.0 / math.Log(16.0),
	}
}

type node struct {
	id        string
	vector    []float32
	level     int
	neighbors [][]string // neighbors[level] = neighbor ids at that level
	tombstone bool
}

// SearchResult is one ranked hit: Score is cosine similarity in [-1, 1]
// (typically [0,1] for the normalized embeddings this store uses), 1 = identical.
type SearchResult struct {
	ID    string
	Score float64
}

// Index is a concurrent-safe HNSW index over unit-norm float32 vectors.
type Index struct {
	config     Config
	dimensions int

	mu             sync.RWMutex
	nodes          map[string]*node
	entryPoint     string
	maxLevel       int
	tombstoneCount int
}

// New creates an empty index for vectors of the given dimension.
func New(dimensions int, config Config) *Index {
	if config.M == 0 {
		config = DefaultConfig()
	}
	return &Index{
		config:     config,
		dimensions: dimensions,
		nodes:      make(map[string]*node),
	}
}

// Dimensions returns the configured vector dimension.
func (idx *Index) Dimensions() int { return idx.dimensions }

// Size returns the number of live (non-tombstoned) nodes.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes) - idx.tombstoneCount
}

// TombstoneCount returns the number of soft-deleted nodes awaiting compaction.
func (idx *Index) TombstoneCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tombstoneCount
}

// Has reports whether id is present and live (not tombstoned).
func (idx *Index) Has(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n, ok := idx.nodes[id]
	return ok && !n.tombstone
}

func randomLevel(mL float64) int {
	r := rand.Float64()
	for r == 0 {
		r = rand.Float64()
	}
	return int(-math.Log(r) * mL)
}

// Add inserts vec under id. vec is normalized internally; callers need not
// pre-normalize. Returns ErrDimensionMismatch or ErrAlreadyExists.
func (idx *Index) Add(id string, vec []float32) error {
	if len(vec) != idx.dimensions {
		return ErrDimensionMismatch
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, exists := idx.nodes[id]; exists {
		if !old.tombstone {
			return ErrAlreadyExists
		}
		delete(idx.nodes, id)
		idx.tombstoneCount--
	}

	normalized := vector.Normalize(vec)
	level := randomLevel(idx.config.LevelMultiplier)

	n := &node{
		id:        id,
		vector:    normalized,
		level:     level,
		neighbors: make([][]string, level+1),
	}
	for i := range n.neighbors {
		n.neighbors[i] = make([]string, 0, idx.config.M)
	}
	idx.nodes[id] = n

	if idx.entryPoint == "" {
		idx.entryPoint = id
		idx.maxLevel = level
		return nil
	}

	ep := idx.entryPoint
	epLevel := idx.nodes[ep].level

	for l := epLevel; l > level; l-- {
		ep = idx.searchLayerSingle(normalized, ep, l)
	}

	for l := min(level, epLevel); l >= 0; l-- {
		candidates := idx.searchLayer(normalized, ep, idx.config.EfConstruction, l)
		m := idx.config.M
		if l == 0 {
			m *= 2
		}
		neighbors := idx.selectNeighbors(normalized, candidates, m)
		n.neighbors[l] = neighbors

		for _, nbID := range neighbors {
			nb := idx.nodes[nbID]
			if len(nb.neighbors) <= l {
				continue
			}
			nbM := idx.config.M
			if l == 0 {
				nbM *= 2
			}
			if len(nb.neighbors[l]) < nbM {
				nb.neighbors[l] = append(nb.neighbors[l], id)
			} else {
				all := append(append([]string(nil), nb.neighbors[l]...), id)
				nb.neighbors[l] = idx.selectNeighbors(nb.vector, all, nbM)
			}
		}

		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}

	if level > idx.maxLevel {
		idx.entryPoint = id
		idx.maxLevel = level
	}

	return nil
}

// Remove soft-deletes id: it is tombstoned (excluded from Search and from
// neighbor traversal) but remains in the graph until Compact runs.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.nodes[id]
	if !ok || n.tombstone {
		return
	}
	n.tombstone = true
	idx.tombstoneCount++

	if idx.entryPoint == id {
		idx.reassignEntryPoint()
	}
}

// reassignEntryPoint picks a new live entry point with the highest level.
// Caller must hold the write lock.
func (idx *Index) reassignEntryPoint() {
	idx.entryPoint = ""
	idx.maxLevel = 0
	best := -1
	for nid, n := range idx.nodes {
		if n.tombstone {
			continue
		}
		if n.level > best {
			best = n.level
			idx.entryPoint = nid
			idx.maxLevel = n.level
		}
	}
}

// Search returns up to k nearest neighbors to query by cosine similarity,
// using beam width max(ef, k) at layer 0 (ef<=0 uses the configured default).
// Tombstoned nodes are excluded. Results are sorted by score descending.
func (idx *Index) Search(query []float32, k int, ef int) ([]SearchResult, error) {
	if len(query) != idx.dimensions {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.entryPoint == "" {
		return []SearchResult{}, nil
	}
	if ef <= 0 {
		ef = idx.config.EfSearch
	}
	if ef < k {
		ef = k
	}

	scratch := pool.GetFloat32Slice(idx.dimensions)
	defer pool.PutFloat32Slice(scratch)
	normalized := vector.NormalizeInto(scratch, query)

	ep := idx.entryPoint
	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.searchLayerSingle(normalized, ep, l)
	}

	candidates := idx.searchLayer(normalized, ep, ef, 0)
	defer pool.PutIDSlice(candidates)

	results := make([]SearchResult, 0, len(candidates))
	for _, id := range candidates {
		n := idx.nodes[id]
		if n.tombstone {
			continue
		}
		results = append(results, SearchResult{ID: id, Score: vector.DotProduct(normalized, n.vector)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// searchLayerSingle greedily walks to the locally-closest neighbor of query
// at level, starting from entryID (single-best-neighbor descent, used above
// the target insert/search layer).
func (idx *Index) searchLayerSingle(query []float32, entryID string, level int) string {
	current := entryID
	currentDist := 1 - vector.DotProduct(query, idx.nodes[current].vector)

	for {
		changed := false
		n := idx.nodes[current]
		if level >= len(n.neighbors) {
			break
		}
		for _, nbID := range n.neighbors[level] {
			nb := idx.nodes[nbID]
			if nb.tombstone {
				continue
			}
			d := 1 - vector.DotProduct(query, nb.vector)
			if d < currentDist {
				current = nbID
				currentDist = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return current
}

// searchLayer runs a beam search of width ef at level, returning candidate
// ids ordered nearest-first. Tombstoned neighbors are skipped: they are
// neither expanded nor returned.
func (idx *Index) searchLayer(query []float32, entryID string, ef int, level int) []string {
	visited := pool.GetVisited()
	defer pool.PutVisited(visited)
	visited[entryID] = true

	candidates := &distHeap{}
	results := &distHeap{}

	entryDist := 1 - vector.DotProduct(query, idx.nodes[entryID].vector)
	candidates.push(distItem{id: entryID, dist: entryDist}, false)
	results.push(distItem{id: entryID, dist: entryDist}, true)

	for candidates.Len() > 0 {
		closest := candidates.pop(false)

		if results.Len() >= ef {
			furthest := results.peekMax()
			if closest.dist > furthest.dist {
				break
			}
		}

		n := idx.nodes[closest.id]
		if level >= len(n.neighbors) {
			continue
		}
		for _, nbID := range n.neighbors[level] {
			if visited[nbID] {
				continue
			}
			visited[nbID] = true

			nb := idx.nodes[nbID]
			if nb.tombstone {
				continue
			}
			d := 1 - vector.DotProduct(query, nb.vector)

			if results.Len() < ef || d < results.peekMax().dist {
				candidates.push(distItem{id: nbID, dist: d}, false)
				results.push(distItem{id: nbID, dist: d}, true)
				if results.Len() > ef {
					results.pop(true)
				}
			}
		}
	}

	out := pool.GetIDSlice()
	n := results.Len()
	for i := 0; i < n; i++ {
		out = append(out, "")
	}
	for i := n - 1; i >= 0; i-- {
		out[i] = results.pop(true).id
	}
	return out
}

func (idx *Index) selectNeighbors(query []float32, candidateIDs []string, m int) []string {
	if len(candidateIDs) <= m {
		return candidateIDs
	}
	type cd struct {
		id   string
		dist float64
	}
	dists := make([]cd, len(candidateIDs))
	for i, id := range candidateIDs {
		dists[i] = cd{id: id, dist: 1 - vector.DotProduct(query, idx.nodes[id].vector)}
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })
	out := make([]string, m)
	for i := 0; i < m; i++ {
		out[i] = dists[i].id
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Compact rebuilds the index with tombstoned nodes omitted entirely,
// reinserting every live node in its existing id order. Scheduled by the
// compaction scheduler when TombstoneCount exceeds its threshold (default
// 50, spec.md §6).
func (idx *Index) Compact() {
	idx.mu.Lock()
	live := make([]*node, 0, len(idx.nodes)-idx.tombstoneCount)
	for _, n := range idx.nodes {
		if !n.tombstone {
			live = append(live, n)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].id < live[j].id })
	idx.mu.Unlock()

	rebuilt := New(idx.dimensions, idx.config)
	for _, n := range live {
		// Add renormalizes; n.vector is already unit-norm so this is a no-op.
		_ = rebuilt.Add(n.id, n.vector)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.nodes = rebuilt.nodes
	idx.entryPoint = rebuilt.entryPoint
	idx.maxLevel = rebuilt.maxLevel
	idx.tombstoneCount = 0
}
