// Package trie implements the binary Patricia Merkle trie used to commit
// the posterior state: keys are 31-byte types.StateKey values, branching on
// successive bits from the most significant bit down, with Keccak-256
// hashing internal nodes as keccak256(left || right). The empty trie's
// root is the all-zero hash.
package trie

import (
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/types"
)

const keyBits = types.StateKeyLength * 8

// node is an internal trie node: either empty, a leaf, or a branch.
type node interface {
	hash() types.Hash
}

type emptyNode struct{}

func (emptyNode) hash() types.Hash { return types.Hash{} }

// leafNode carries the full key (for disambiguation on split) and value.
type leafNode struct {
	key   types.StateKey
	value []byte

	cached    bool
	hashValue types.Hash
}

func (l *leafNode) hash() types.Hash {
	if l.cached {
		return l.hashValue
	}
	buf := make([]byte, 0, types.StateKeyLength+len(l.value)+1)
	buf = append(buf, 0x01)
	buf = append(buf, l.key[:]...)
	buf = append(buf, l.value...)
	l.hashValue = crypto.Keccak256Hash(buf)
	l.cached = true
	return l.hashValue
}

// branchNode has exactly two children, selected by the bit at depth.
type branchNode struct {
	left, right node

	cached    bool
	hashValue types.Hash
}

func (b *branchNode) hash() types.Hash {
	if b.cached {
		return b.hashValue
	}
	lh := b.left.hash()
	rh := b.right.hash()
	buf := make([]byte, 0, 2*types.HashLength)
	buf = append(buf, lh.Bytes()...)
	buf = append(buf, rh.Bytes()...)
	b.hashValue = crypto.Keccak256Hash(buf)
	b.cached = true
	return b.hashValue
}

// bit returns the bit of key at position depth (0 = MSB of key[0]).
func bit(key types.StateKey, depth int) int {
	byteIdx := depth / 8
	bitIdx := 7 - uint(depth%8)
	return int((key[byteIdx] >> bitIdx) & 1)
}
