package btree

import (
	"bytes"
	"sort"
)

const (
	// maxDegree is the key count at which a node must split.
	maxDegree = 4

	// minKeys is the fill below which a non-root node is rebalanced after a
	// deletion. Leaves always end at minKeys or more; internal nodes may be
	// left with a single key.
	minKeys = (maxDegree + 1) / 2
)

// node is either a leaf or an internal node, discriminated by leaf. The
// tree owns the root and each internal node owns its children; parent and
// leaf-chain links are non-owning navigation edges.
type node struct {
	leaf   bool
	parent *node

	keys [][]byte

	// leaf fields: values aligns with keys, next/prev form the leaf chain
	values [][]byte
	next   *node
	prev   *node

	// internal field: len(children) == len(keys)+1
	children []*node
}

func newLeaf() *node {
	return &node{leaf: true}
}

func newInternal() *node {
	return &node{}
}

// search returns the index of key in a leaf, or -1.
func (n *node) search(key []byte) int {
	idx := n.upperBound(key)
	if idx > 0 && bytes.Equal(n.keys[idx-1], key) {
		return idx - 1
	}
	return -1
}

// upperBound returns the count of keys <= key: the routing slot in an
// internal node (equal separators route right) and the insertion point in
// a leaf.
func (n *node) upperBound(key []byte) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return bytes.Compare(n.keys[i], key) > 0
	})
}

// pos returns the slot of child in n.children. The child is always present;
// callers hold a parent link to n.
func (n *node) pos(child *node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	panic("btree: child not found in parent")
}
