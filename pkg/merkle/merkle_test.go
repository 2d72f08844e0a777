package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFixture(t *testing.T) {
	got := Hash([]byte("hello"))
	assert.Equal(t, "3338be694f50c5f338814986cdf0686453a888b84f424d792af4b9202398f392", got)
	assert.Len(t, got, 64)
}

func leafDigests(values ...string) []Digest {
	out := make([]Digest, len(values))
	for i, v := range values {
		out[i] = Hash([]byte(v))
	}
	return out
}

func TestBuildTreeAndRoot(t *testing.T) {
	leaves := leafDigests("a", "b", "c")
	tree := Build(leaves)
	assert.NotEmpty(t, tree.Root())
	assert.Equal(t, 3, tree.LeafCount())
}

func TestRoundTripAllLeaves(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 17} {
		values := make([]string, n)
		for i := range values {
			values[i] = string(rune('a' + i))
		}
		leaves := leafDigests(values...)
		tree := Build(leaves)
		for i := 0; i < n; i++ {
			proof := tree.GenerateProof(i)
			require.NotNilf(t, proof, "n=%d i=%d", n, i)
			assert.Truef(t, proof.Verify(), "n=%d i=%d: proof did not verify", n, i)
			assert.Truef(t, VerifyWithValues(proof, tree.Root(), leaves[i]), "n=%d i=%d: VerifyWithValues failed", n, i)
		}
	}
}

func TestFlippedSiblingByteFalsifiesProof(t *testing.T) {
	leaves := leafDigests("a", "b", "c", "d")
	tree := Build(leaves)
	proof := tree.GenerateProof(0)
	require.True(t, proof.Verify(), "expected valid proof before tampering")
	require.NotEmpty(t, proof.Siblings)

	tampered := []byte(proof.Siblings[0])
	// flip a hex nibble
	if tampered[0] == '0' {
		tampered[0] = '1'
	} else {
		tampered[0] = '0'
	}
	proof.Siblings[0] = string(tampered)
	assert.False(t, proof.Verify(), "expected tampered proof to fail verification")
}

func TestFlippedLeafByteChangesRoot(t *testing.T) {
	leaves := leafDigests("a", "b", "c")
	tree1 := Build(leaves)

	tampered := append([]Digest(nil), leaves...)
	bs := []byte(tampered[0])
	if bs[len(bs)-1] == '0' {
		bs[len(bs)-1] = '1'
	} else {
		bs[len(bs)-1] = '0'
	}
	tampered[0] = string(bs)
	tree2 := Build(tampered)

	assert.NotEqual(t, tree1.Root(), tree2.Root(), "expected root to change after flipping leaf 0's last byte")
}

func TestOddLeafPromotion(t *testing.T) {
	leaves := leafDigests("a", "b", "c")
	tree := Build(leaves)
	// level 0 has 3 leaves; leaf 2 has no sibling and should be promoted
	// unchanged into level 1.
	proof := tree.GenerateProof(2)
	require.NotNil(t, proof)
	assert.True(t, proof.Verify(), "expected valid proof for promoted odd leaf")
}

func TestPairHashCommutative(t *testing.T) {
	a := Hash([]byte("x"))
	b := Hash([]byte("y"))
	assert.Equal(t, pairHash(a, b), pairHash(b, a), "pairHash must be commutative (sorted concatenation)")
}

func TestDirectionBitsReflectPosition(t *testing.T) {
	leaves := leafDigests("a", "b")
	tree := Build(leaves)
	p0 := tree.GenerateProof(0)
	p1 := tree.GenerateProof(1)
	require.Len(t, p0.Directions, 1)
	assert.True(t, p0.Directions[0], "leaf 0's sibling (leaf 1) should be marked on the right")
	require.Len(t, p1.Directions, 1)
	assert.False(t, p1.Directions[0], "leaf 1's sibling (leaf 0) should be marked on the left")
}

func TestEmptyTree(t *testing.T) {
	tree := Build(nil)
	assert.Equal(t, "", tree.Root())
	assert.Nil(t, tree.GenerateProof(0))
}
