package hnsw

import "container/heap"

// distItem is one candidate in a beam-search priority queue, ordered by
// distance (1 - cosine similarity; smaller is closer).
type distItem struct {
	id   string
	dist float64
}

// distHeap backs both the "nearest candidates to explore next" min-heap and
// the "best results seen so far" max-heap used by searchLayer, selected via
// the isMax flag passed to push/pop.
type distHeap struct {
	items []distItem
	isMax bool
}

func (h *distHeap) Len() int { return len(h.items) }
func (h *distHeap) Less(i, j int) bool {
	if h.isMax {
		return h.items[i].dist > h.items[j].dist
	}
	return h.items[i].dist < h.items[j].dist
}
func (h *distHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *distHeap) Push(x any)    { h.items = append(h.items, x.(distItem)) }
func (h *distHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// push adds item, configuring heap order (min vs max) on first use.
func (h *distHeap) push(item distItem, isMax bool) {
	h.isMax = isMax
	heap.Push(h, item)
}

// pop removes and returns the top item (nearest for a min-heap, furthest for
// a max-heap).
func (h *distHeap) pop(isMax bool) distItem {
	h.isMax = isMax
	return heap.Pop(h).(distItem)
}

// peekMax returns the furthest item in a max-heap without removing it.
func (h *distHeap) peekMax() distItem {
	return h.items[0]
}
