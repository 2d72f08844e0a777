package attractor

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/nmtsys/memstore/pkg/errs"
	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/store"
	"github.com/nmtsys/memstore/pkg/vector"
)

// DefaultMaxDepth and DefaultMaxSearchNodes bound A* search per spec.md
// §4.4 so a poorly connected graph can't run away.
const (
	DefaultMaxDepth       = 10
	DefaultMaxSearchNodes = 1000
	heuristicWeight       = 1.0 // w_h in f = g + w_h*h
	goalCosineThreshold   = 0.9
	yenEdgePenalty        = 2.0
)

// Edge is one traversed hop in a returned path, carrying its cost so
// callers can identify bottlenecks without a second lookup.
type Edge struct {
	From string
	To   string
	Cost float64
}

// Path is the result of one A* search.
type Path struct {
	NodeIDs       []string
	Edges         []Edge
	TotalCost     float64
	NodesExplored int
	Probability   float64 // product of (1 - edge cost) along the path
	Bottlenecks   []Edge  // edges whose cost exceeds 1.5x the path's mean edge cost
}

// Planner runs A*-based path search toward attractor goal regions over the
// neuron/synapse graph.
type Planner struct {
	Neurons         *store.NeuronStore
	Synapses        *store.SynapseStore
	Attractors      *store.AttractorStore
	InfluenceRadius float64
}

// New returns a Planner with the default influence radius.
func New(neurons *store.NeuronStore, synapses *store.SynapseStore, attractors *store.AttractorStore) *Planner {
	return &Planner{Neurons: neurons, Synapses: synapses, Attractors: attractors, InfluenceRadius: DefaultInfluenceRadius}
}

type searchNode struct {
	id    string
	g     float64
	f     float64
	depth int
	path  []string
	edges []Edge
}

type nodeHeap []searchNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(searchNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// edgeCost implements spec.md §4.4's cost function:
// cost(u,v) = max(0.01, (1-w_uv) - bonus(u,v)),
// bonus = 0.5*max(0, d(u,goal)-d(v,goal)), d = 1-cos. A path that makes
// genuine progress toward the goal (d decreases) gets a cost discount.
func edgeCost(weight float64, uEmbedding, vEmbedding, goalEmbedding []float32) float64 {
	dU := vector.Distance(uEmbedding, goalEmbedding)
	dV := vector.Distance(vEmbedding, goalEmbedding)
	bonus := 0.5 * math.Max(0, dU-dV)
	cost := (1 - weight) - bonus
	return math.Max(0.01, cost)
}

// heuristic is clamp(1-cos(v,goal), 0, 1) — clamped because raw 1-cos
// ranges over [0,2] when similarity is negative, which would break A*
// admissibility.
func heuristic(vEmbedding, goalEmbedding []float32) float64 {
	return vector.Clamp(vector.Distance(vEmbedding, goalEmbedding), 0, 1)
}

func edgeKey(u, v string) string { return u + "->" + v }

// search runs one A* search from startID to goalID. penalties adds an
// extra cost to specific edges (used by k-best to force alternative
// routes); it may be nil.
func (p *Planner) search(ctx context.Context, startID, goalID string, maxDepth, maxSearchNodes int, penalties map[string]float64) (*Path, error) {
	start, err := p.Neurons.Get(ctx, startID)
	if err != nil {
		return nil, fmt.Errorf("attractor: start neuron: %w", err)
	}
	goal, err := p.Neurons.Get(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("attractor: goal neuron: %w", err)
	}

	if vector.CosineSimilarity(start.Embedding, goal.Embedding) > goalCosineThreshold {
		return &Path{NodeIDs: []string{startID}, Probability: 1}, nil
	}

	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, searchNode{
		id: startID, g: 0, f: heuristicWeight * heuristic(start.Embedding, goal.Embedding),
		depth: 0, path: []string{startID},
	})

	visited := make(map[string]float64) // best g seen per node
	explored := 0

	for open.Len() > 0 {
		if explored >= maxSearchNodes {
			break
		}
		cur := heap.Pop(open).(searchNode)
		explored++

		if best, ok := visited[cur.id]; ok && best <= cur.g {
			continue
		}
		visited[cur.id] = cur.g

		curNeuron, err := p.Neurons.Get(ctx, cur.id)
		if err != nil {
			continue
		}
		if vector.CosineSimilarity(curNeuron.Embedding, goal.Embedding) > goalCosineThreshold {
			return buildPath(cur, explored), nil
		}
		if cur.depth >= maxDepth {
			continue
		}

		out, err := p.Synapses.Outgoing(ctx, cur.id)
		if err != nil {
			return nil, err
		}
		for _, s := range out {
			if s.Type == model.SynapseInhibitory {
				continue
			}
			neighbor, err := p.Neurons.Get(ctx, s.TargetID)
			if err != nil {
				continue
			}
			cost := edgeCost(s.Weight, curNeuron.Embedding, neighbor.Embedding, goal.Embedding)
			cost += penalties[edgeKey(cur.id, s.TargetID)]

			g := cur.g + cost
			if best, ok := visited[s.TargetID]; ok && best <= g {
				continue
			}
			f := g + heuristicWeight*heuristic(neighbor.Embedding, goal.Embedding)

			path := append(append([]string(nil), cur.path...), s.TargetID)
			edges := append(append([]Edge(nil), cur.edges...), Edge{From: cur.id, To: s.TargetID, Cost: cost})
			heap.Push(open, searchNode{id: s.TargetID, g: g, f: f, depth: cur.depth + 1, path: path, edges: edges})
		}
	}

	return nil, fmt.Errorf("%w: no path found from %s to %s within maxDepth=%d/maxSearchNodes=%d", errs.NotFound, startID, goalID, maxDepth, maxSearchNodes)
}

func buildPath(n searchNode, explored int) *Path {
	prob := 1.0
	var meanCost float64
	for _, e := range n.edges {
		prob *= 1 - e.Cost
		meanCost += e.Cost
	}
	if len(n.edges) > 0 {
		meanCost /= float64(len(n.edges))
	}

	var bottlenecks []Edge
	for _, e := range n.edges {
		if e.Cost > 1.5*meanCost {
			bottlenecks = append(bottlenecks, e)
		}
	}

	return &Path{
		NodeIDs:       n.path,
		Edges:         n.edges,
		TotalCost:     n.g,
		NodesExplored: explored,
		Probability:   prob,
		Bottlenecks:   bottlenecks,
	}
}

// FindPath runs a single A* search from startID to goalID.
func (p *Planner) FindPath(ctx context.Context, startID, goalID string, maxDepth int) (*Path, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return p.search(ctx, startID, goalID, maxDepth, DefaultMaxSearchNodes, nil)
}

// FindAlternativePaths returns up to k paths via Yen-style edge
// penalization (spec.md §4.4): after each successful search, every edge on
// the winning path gets +2.0 cost and the search re-runs; it stops after k
// successes or the first failure to find a new path (no path at all, or the
// same node sequence as an earlier path).
func (p *Planner) FindAlternativePaths(ctx context.Context, startID, goalID string, k, maxDepth int) ([]*Path, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	penalties := make(map[string]float64)
	var paths []*Path

	for i := 0; i < k; i++ {
		path, err := p.search(ctx, startID, goalID, maxDepth, DefaultMaxSearchNodes, penalties)
		if err != nil {
			break
		}
		repeated := false
		for _, prev := range paths {
			if slices.Equal(prev.NodeIDs, path.NodeIDs) {
				repeated = true
				break
			}
		}
		if repeated {
			break
		}
		paths = append(paths, path)
		for _, e := range path.Edges {
			penalties[edgeKey(e.From, e.To)] += yenEdgePenalty
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no path found from %s to %s", errs.NotFound, startID, goalID)
	}
	return paths, nil
}
