package trie

import "github.com/jamchain/jamd/types"

// Trie is a binary Patricia Merkle trie over 31-byte state keys. The zero
// value is an empty trie.
type Trie struct {
	root node
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{root: emptyNode{}}
}

// Root returns the Merkle root of the trie, all-zero when empty.
func (t *Trie) Root() types.Hash {
	return t.root.hash()
}

// Get returns the value stored at key, if any.
func (t *Trie) Get(key types.StateKey) ([]byte, bool) {
	n := t.root
	depth := 0
	for {
		switch cur := n.(type) {
		case emptyNode:
			return nil, false
		case *leafNode:
			if cur.key == key {
				return cur.value, true
			}
			return nil, false
		case *branchNode:
			if bit(key, depth) == 0 {
				n = cur.left
			} else {
				n = cur.right
			}
			depth++
		default:
			return nil, false
		}
	}
}

// Put inserts or overwrites the value at key.
func (t *Trie) Put(key types.StateKey, value []byte) {
	t.root = insert(t.root, key, value, 0)
}

// Delete removes key from the trie, if present.
func (t *Trie) Delete(key types.StateKey) {
	t.root = remove(t.root, key, 0)
}

func insert(n node, key types.StateKey, value []byte, depth int) node {
	switch cur := n.(type) {
	case emptyNode:
		return &leafNode{key: key, value: value}
	case *leafNode:
		if cur.key == key {
			return &leafNode{key: key, value: value}
		}
		return split(cur, &leafNode{key: key, value: value}, depth)
	case *branchNode:
		if bit(key, depth) == 0 {
			return &branchNode{left: insert(cur.left, key, value, depth+1), right: cur.right}
		}
		return &branchNode{left: cur.left, right: insert(cur.right, key, value, depth+1)}
	default:
		return &leafNode{key: key, value: value}
	}
}

// split builds the branch chain separating two leaves whose keys agree
// through depth but diverge somewhere below it.
func split(a, b *leafNode, depth int) node {
	if depth >= keyBits {
		// Identical keys reaching full depth cannot happen: Insert
		// replaces equal-key leaves directly.
		return b
	}
	ba, bb := bit(a.key, depth), bit(b.key, depth)
	if ba == bb {
		child := split(a, b, depth+1)
		if ba == 0 {
			return &branchNode{left: child, right: emptyNode{}}
		}
		return &branchNode{left: emptyNode{}, right: child}
	}
	if ba == 0 {
		return &branchNode{left: a, right: b}
	}
	return &branchNode{left: b, right: a}
}

func remove(n node, key types.StateKey, depth int) node {
	switch cur := n.(type) {
	case emptyNode:
		return cur
	case *leafNode:
		if cur.key == key {
			return emptyNode{}
		}
		return cur
	case *branchNode:
		var left, right node
		if bit(key, depth) == 0 {
			left, right = remove(cur.left, key, depth+1), cur.right
		} else {
			left, right = cur.left, remove(cur.right, key, depth+1)
		}
		return collapse(left, right)
	default:
		return n
	}
}

// collapse simplifies a branch whose children are now empty or a single
// leaf, so deletions do not leave dangling one-child branches behind.
func collapse(left, right node) node {
	_, leftEmpty := left.(emptyNode)
	_, rightEmpty := right.(emptyNode)
	if leftEmpty && rightEmpty {
		return emptyNode{}
	}
	if leftLeaf, ok := left.(*leafNode); ok && rightEmpty {
		return leftLeaf
	}
	if rightLeaf, ok := right.(*leafNode); ok && leftEmpty {
		return rightLeaf
	}
	return &branchNode{left: left, right: right}
}
