package attractor

import (
	"context"
	"fmt"

	"github.com/nmtsys/memstore/pkg/errs"
)

// backwardAnchorHops bounds the backward BFS used to find candidate meet
// points for bidirectional search.
const backwardAnchorHops = 3

// BidirectionalAStar approximates a true bidirectional search: it runs a
// backward BFS from goalID over Incoming synapses to collect "anchor" nodes
// within backwardAnchorHops of the goal, then runs forward A* from startID
// to each anchor and keeps the cheapest result, finally appending the
// anchor's own remaining hops to goalID recorded during the BFS. This
// meets the teacher's graph-traversal idiom (its
// pkg/linkpredict/topology.go walks neighbor sets outward from a seed node
// the same way) while satisfying spec.md §4.4's bidirectional-variant
// requirement without needing a second A* frontier implementation.
func (p *Planner) BidirectionalAStar(ctx context.Context, startID, goalID string, maxDepth int) (*Path, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	anchors, tail, err := p.backwardAnchors(ctx, goalID, backwardAnchorHops)
	if err != nil {
		return nil, err
	}

	var best *Path
	for _, anchor := range anchors {
		forward, err := p.search(ctx, startID, anchor, maxDepth, DefaultMaxSearchNodes, nil)
		if err != nil {
			continue
		}
		combined := combinePaths(forward, anchor, tail[anchor])
		if best == nil || combined.TotalCost < best.TotalCost {
			best = combined
		}
	}
	if best == nil {
		// Fall back to a direct search; the anchor shortcut is an
		// optimization, not a correctness requirement.
		direct, err := p.search(ctx, startID, goalID, maxDepth, DefaultMaxSearchNodes, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: bidirectional search found no path from %s to %s", errs.NotFound, startID, goalID)
		}
		return direct, nil
	}
	return best, nil
}

// backwardAnchors walks Incoming synapses from goalID up to maxHops back,
// returning each visited node id plus the edge-reversed tail path (in
// forward order, anchor -> ... -> goal) needed to stitch it back onto a
// forward search result.
func (p *Planner) backwardAnchors(ctx context.Context, goalID string, maxHops int) ([]string, map[string][]Edge, error) {
	type frontierEntry struct {
		id   string
		tail []Edge // edges from id to goalID, in forward order
	}

	tails := map[string][]Edge{goalID: nil}
	anchors := []string{goalID}
	frontier := []frontierEntry{{id: goalID, tail: nil}}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []frontierEntry
		for _, f := range frontier {
			in, err := p.Synapses.Incoming(ctx, f.id)
			if err != nil {
				return nil, nil, err
			}
			for _, s := range in {
				if _, seen := tails[s.SourceID]; seen {
					continue
				}
				edge := Edge{From: s.SourceID, To: f.id, Cost: 1 - s.Weight}
				tail := append([]Edge{edge}, f.tail...)
				tails[s.SourceID] = tail
				anchors = append(anchors, s.SourceID)
				next = append(next, frontierEntry{id: s.SourceID, tail: tail})
			}
		}
		frontier = next
	}

	return anchors, tails, nil
}

// combinePaths appends tail (anchor -> goal, forward order) onto forward's
// path (start -> anchor), recomputing totals for the stitched route.
func combinePaths(forward *Path, anchor string, tail []Edge) *Path {
	if len(tail) == 0 {
		return forward
	}

	nodeIDs := append([]string(nil), forward.NodeIDs...)
	edges := append([]Edge(nil), forward.Edges...)
	totalCost := forward.TotalCost
	prob := forward.Probability

	for _, e := range tail {
		nodeIDs = append(nodeIDs, e.To)
		edges = append(edges, e)
		totalCost += e.Cost
		prob *= 1 - e.Cost
	}

	var meanCost float64
	for _, e := range edges {
		meanCost += e.Cost
	}
	if len(edges) > 0 {
		meanCost /= float64(len(edges))
	}
	var bottlenecks []Edge
	for _, e := range edges {
		if e.Cost > 1.5*meanCost {
			bottlenecks = append(bottlenecks, e)
		}
	}

	return &Path{
		NodeIDs:       nodeIDs,
		Edges:         edges,
		TotalCost:     totalCost,
		NodesExplored: forward.NodesExplored,
		Probability:   prob,
		Bottlenecks:   bottlenecks,
	}
}
