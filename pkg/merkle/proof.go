package merkle

// Proof is a Merkle inclusion proof: the leaf digest, its index in the
// original ordered chunk sequence, the sibling digest at each level on the
// path to the root, a parallel direction bit per sibling (true iff that
// sibling was positioned to the right of the current node at that level),
// and the root it should fold up to.
//
// The direction bits are carried for wire compatibility and debuggability
// (spec.md §6): because pair hashing sorts its two operands before
// concatenating, the fold itself does not need the direction to produce the
// correct root, but a verifier reconstructing the tree from proofs alone
// (rather than just folding) needs position information to place the leaf.
type Proof struct {
	Leaf       Digest   `msgpack:"leaf"`
	LeafIndex  int      `msgpack:"leaf_index"`
	Siblings   []Digest `msgpack:"siblings"`
	Directions []bool   `msgpack:"directions"`
	Root       Digest   `msgpack:"root"`
}

// Verify replays the proof's folds against its own embedded root. It does
// not check the proof's leaf/root against external expectations — use
// VerifyWithValues for that.
func (p *Proof) Verify() bool {
	if p == nil {
		return false
	}
	current := p.Leaf
	for _, sib := range p.Siblings {
		current = pairHash(current, sib)
	}
	return current == p.Root
}

// VerifyWithValues verifies p both replays to expectedRoot and commits to
// expectedLeaf — the self-contained check callers should use when root and
// leaf come from an independent source (e.g. a stored Neuron.MerkleRoot and
// a freshly-hashed chunk), not from the proof itself.
func VerifyWithValues(p *Proof, expectedRoot, expectedLeaf Digest) bool {
	if p == nil {
		return false
	}
	if p.Leaf != expectedLeaf || p.Root != expectedRoot {
		return false
	}
	return p.Verify()
}
