package merkle

// Tree is a bottom-up Merkle tree built over an ordered sequence of leaf
// digests (one per chunk of a document). levels[0] holds the leaves,
// levels[len-1] holds the single root.
type Tree struct {
	levels [][]Digest
}

// Build constructs a Tree over leaves in the given order. An odd node out at
// any level is promoted unchanged to the next level (spec.md §3/§4.1) rather
// than duplicated, so the tree shape reflects the true chunk count.
//
// Build(nil) and Build([]Digest{}) both produce an empty tree whose Root is
// the empty string; callers ingesting zero-length documents should treat
// that as "no commitment" rather than calling GenerateProof on it.
func Build(leaves []Digest) *Tree {
	if len(leaves) == 0 {
		return &Tree{levels: [][]Digest{{}}}
	}
	levels := [][]Digest{append([]Digest(nil), leaves...)}
	current := levels[0]
	for len(current) > 1 {
		next := make([]Digest, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, pairHash(current[i], current[i+1]))
			} else {
				next = append(next, current[i])
			}
		}
		levels = append(levels, next)
		current = next
	}
	return &Tree{levels: levels}
}

// Root returns the tree's root digest, or "" for an empty tree.
func (t *Tree) Root() Digest {
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return ""
	}
	return top[0]
}

// LeafCount returns the number of leaves committed by the tree.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// GenerateProof produces an inclusion proof for the leaf at index i, or nil
// if i is out of range. See Proof for the wire shape.
func (t *Tree) GenerateProof(i int) *Proof {
	if i < 0 || i >= t.LeafCount() {
		return nil
	}
	leaf := t.levels[0][i]
	var siblings []Digest
	var directions []bool

	idx := i
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		var siblingOnRight bool
		if idx%2 == 0 {
			siblingIdx = idx + 1
			siblingOnRight = true
		} else {
			siblingIdx = idx - 1
			siblingOnRight = false
		}
		if siblingIdx >= 0 && siblingIdx < len(nodes) {
			siblings = append(siblings, nodes[siblingIdx])
			directions = append(directions, siblingOnRight)
		}
		// No sibling entry when idx was the promoted odd node out: the
		// digest carries forward unchanged to the next level.
		idx /= 2
	}

	return &Proof{
		Leaf:       leaf,
		LeafIndex:  i,
		Siblings:   siblings,
		Directions: directions,
		Root:       t.Root(),
	}
}
