package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func leaf(b byte) [32]byte {
	var l [32]byte
	l[0] = b
	return l
}

func TestMerkleTree_RootStableRegardlessOfInsertionOrder(t *testing.T) {
	a := buildMerkleTree([][32]byte{leaf(1), leaf(2), leaf(3)})
	b := buildMerkleTree([][32]byte{leaf(3), leaf(1), leaf(2)})
	assert.Equal(t, a.root(), b.root())
}

func TestMerkleTree_PathVerifiesAgainstRoot(t *testing.T) {
	leaves := [][32]byte{leaf(1), leaf(2), leaf(3), leaf(4), leaf(5)}
	tree := buildMerkleTree(leaves)
	for _, l := range leaves {
		steps, ok := tree.path(l)
		assert.True(t, ok)
		assert.True(t, VerifyPath(l, steps, tree.root()))
	}
}

func TestMerkleTree_PathMissingLeaf(t *testing.T) {
	tree := buildMerkleTree([][32]byte{leaf(1), leaf(2)})
	_, ok := tree.path(leaf(99))
	assert.False(t, ok)
}

func TestMerkleTree_EmptyTreeHasZeroRoot(t *testing.T) {
	tree := buildMerkleTree(nil)
	assert.Equal(t, [32]byte{}, tree.root())
}

func TestVerifyPath_FailsForWrongRoot(t *testing.T) {
	leaves := [][32]byte{leaf(1), leaf(2), leaf(3)}
	tree := buildMerkleTree(leaves)
	steps, ok := tree.path(leaf(1))
	assert.True(t, ok)
	assert.False(t, VerifyPath(leaf(1), steps, leaf(99)))
}
