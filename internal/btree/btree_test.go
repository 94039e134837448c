package btree

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants validates the structural invariants after a mutation:
// in-node key order, uniform leaf depth, fill bounds, separator bounds,
// parent back-references, and the leaf chain.
func checkInvariants(t *testing.T, tree *BTree) {
	t.Helper()

	depth := -1
	var walk func(n *node, level int, lower, upper []byte)
	walk = func(n *node, level int, lower, upper []byte) {
		for i := 1; i < len(n.keys); i++ {
			require.Negative(t, bytes.Compare(n.keys[i-1], n.keys[i]),
				"keys not strictly increasing in node")
		}
		for _, k := range n.keys {
			if lower != nil {
				require.GreaterOrEqual(t, bytes.Compare(k, lower), 0,
					"key below subtree lower bound")
			}
			if upper != nil {
				require.Negative(t, bytes.Compare(k, upper),
					"key at or above subtree upper bound")
			}
		}

		if n.leaf {
			require.Len(t, n.values, len(n.keys))
			if depth == -1 {
				depth = level
			}
			require.Equal(t, depth, level, "leaves at unequal depth")
			if n != tree.root {
				require.GreaterOrEqual(t, len(n.keys), minKeys, "leaf under-filled")
				require.LessOrEqual(t, len(n.keys), maxDegree-1, "leaf over-filled")
			}
			return
		}

		require.Len(t, n.children, len(n.keys)+1)
		if n != tree.root {
			// An internal split at M=4 hands the right sibling a single key,
			// and a borrow into an emptied internal node also leaves it with
			// one, so the standing lower bound for internal nodes is one.
			require.GreaterOrEqual(t, len(n.keys), 1, "internal node empty")
			require.LessOrEqual(t, len(n.keys), maxDegree-1, "internal node over-filled")
		}
		for i, c := range n.children {
			require.Same(t, n, c.parent, "child parent link broken")
			lo, hi := lower, upper
			if i > 0 {
				lo = n.keys[i-1]
			}
			if i < len(n.keys) {
				hi = n.keys[i]
			}
			walk(c, level+1, lo, hi)
		}
	}
	walk(tree.root, 0, nil, nil)

	// Leaf chain: visits every leaf in order, concatenated keys strictly
	// increasing, count matching Len.
	n := tree.root
	for !n.leaf {
		n = n.children[0]
	}
	require.Nil(t, n.prev)
	var prevKey []byte
	count := 0
	for ; n != nil; n = n.next {
		if n.next != nil {
			require.Same(t, n, n.next.prev, "leaf chain back-link broken")
		}
		for _, k := range n.keys {
			if prevKey != nil {
				require.Negative(t, bytes.Compare(prevKey, k), "leaf chain out of order")
			}
			prevKey = k
			count++
		}
	}
	require.Equal(t, tree.Len(), count, "leaf chain entry count mismatch")
}

func TestBTreeBasicOps(t *testing.T) {
	t.Parallel()

	tree := New()

	assert.True(t, tree.Put([]byte("key1"), []byte("value1")))
	v, ok := tree.Get([]byte("key1"))
	assert.True(t, ok)
	assert.Equal(t, "value1", string(v))

	// Overwrite in place
	assert.False(t, tree.Put([]byte("key1"), []byte("value2")))
	v, _ = tree.Get([]byte("key1"))
	assert.Equal(t, "value2", string(v))
	assert.Equal(t, 1, tree.Len())

	_, ok = tree.Get([]byte("nonexistent"))
	assert.False(t, ok)

	assert.True(t, tree.Delete([]byte("key1")))
	assert.False(t, tree.Delete([]byte("key1")))
	assert.Equal(t, 0, tree.Len())
}

func TestBTreeUpdate(t *testing.T) {
	t.Parallel()

	tree := New()
	assert.False(t, tree.Update([]byte("missing"), []byte("v")))

	tree.Put([]byte("k"), []byte("v1"))
	assert.True(t, tree.Update([]byte("k"), []byte("v2")))
	v, _ := tree.Get([]byte("k"))
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, 1, tree.Len())
}

func TestBTreeSplits(t *testing.T) {
	t.Parallel()

	tree := New()
	for i := 0; i < 1000; i++ {
		tree.Put([]byte(fmt.Sprintf("key%04d", i)), []byte(fmt.Sprintf("val%d", i)))
		checkInvariants(t, tree)
	}
	require.Equal(t, 1000, tree.Len())
	for i := 0; i < 1000; i++ {
		v, ok := tree.Get([]byte(fmt.Sprintf("key%04d", i)))
		require.True(t, ok, "key%04d missing", i)
		require.Equal(t, fmt.Sprintf("val%d", i), string(v))
	}
}

func TestBTreeReverseInsertion(t *testing.T) {
	t.Parallel()

	tree := New()
	for i := 99; i >= 0; i-- {
		tree.Put([]byte(fmt.Sprintf("key%02d", i)), []byte("v"))
		checkInvariants(t, tree)
	}
	var keys []string
	tree.Ascend(func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	require.Len(t, keys, 100)
	assert.True(t, sort.StringsAreSorted(keys))
	for i := 0; i < 100; i++ {
		_, ok := tree.Get([]byte(fmt.Sprintf("key%02d", i)))
		assert.True(t, ok)
	}
}

func TestBTreeDeleteAll(t *testing.T) {
	t.Parallel()

	const n = 500
	tree := New()
	for i := 0; i < n; i++ {
		tree.Put([]byte(fmt.Sprintf("k%05d", i)), []byte("v"))
	}

	// Delete in an interleaved order to exercise borrows and merges on
	// both sides.
	for i := 0; i < n; i += 2 {
		require.True(t, tree.Delete([]byte(fmt.Sprintf("k%05d", i))))
		checkInvariants(t, tree)
	}
	for i := n - 1; i >= 0; i -= 2 {
		require.True(t, tree.Delete([]byte(fmt.Sprintf("k%05d", i))))
		checkInvariants(t, tree)
	}
	require.Equal(t, 0, tree.Len())

	// Root collapsed back to an empty leaf; the tree stays usable.
	tree.Put([]byte("again"), []byte("v"))
	v, ok := tree.Get([]byte("again"))
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestBTreeAscendEarlyStop(t *testing.T) {
	t.Parallel()

	tree := New()
	for i := 0; i < 50; i++ {
		tree.Put([]byte(fmt.Sprintf("k%02d", i)), []byte("v"))
	}
	visited := 0
	tree.Ascend(func(_, _ []byte) bool {
		visited++
		return visited < 10
	})
	assert.Equal(t, 10, visited)
}

func TestBTreeEmptyKeyAndValue(t *testing.T) {
	t.Parallel()

	tree := New()
	tree.Put([]byte{}, []byte("empty-key"))
	tree.Put([]byte("k"), []byte{})

	v, ok := tree.Get([]byte{})
	assert.True(t, ok)
	assert.Equal(t, "empty-key", string(v))

	v, ok = tree.Get([]byte("k"))
	assert.True(t, ok)
	assert.Empty(t, v)

	// The empty key sorts before everything else.
	var first []byte
	tree.Ascend(func(k, _ []byte) bool {
		first = k
		return false
	})
	assert.Empty(t, first)
}

func TestBTreeCallerCannotAliasStorage(t *testing.T) {
	t.Parallel()

	tree := New()
	key := []byte("key")
	value := []byte("value")
	tree.Put(key, value)

	key[0] = 'X'
	value[0] = 'X'

	v, ok := tree.Get([]byte("key"))
	require.True(t, ok)
	assert.Equal(t, "value", string(v))
}

// TestBTreeRandomAgainstModel drives the tree with a random operation mix
// and cross-checks every result against a plain map.
func TestBTreeRandomAgainstModel(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	tree := New()
	model := make(map[string]string)

	keyFor := func() []byte {
		return []byte(fmt.Sprintf("key%03d", rng.Intn(400)))
	}

	for i := 0; i < 20000; i++ {
		key := keyFor()
		switch rng.Intn(4) {
		case 0, 1:
			val := []byte(fmt.Sprintf("val%d", i))
			tree.Put(key, val)
			model[string(key)] = string(val)
		case 2:
			val := []byte(fmt.Sprintf("upd%d", i))
			_, exists := model[string(key)]
			assert.Equal(t, exists, tree.Update(key, val))
			if exists {
				model[string(key)] = string(val)
			}
		case 3:
			_, exists := model[string(key)]
			assert.Equal(t, exists, tree.Delete(key))
			delete(model, string(key))
		}

		if i%500 == 0 {
			checkInvariants(t, tree)
		}
	}
	checkInvariants(t, tree)

	require.Equal(t, len(model), tree.Len())
	got := make(map[string]string)
	var prev []byte
	tree.Ascend(func(k, v []byte) bool {
		if prev != nil {
			require.Negative(t, bytes.Compare(prev, k))
		}
		prev = append(prev[:0], k...)
		got[string(k)] = string(v)
		return true
	})
	assert.Equal(t, model, got)
}

func TestBTreeDebugString(t *testing.T) {
	t.Parallel()

	tree := New()
	for i := 0; i < 10; i++ {
		tree.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
	}
	s := tree.DebugString()
	assert.Contains(t, s, "k0")
	assert.Contains(t, s, "[")
}
