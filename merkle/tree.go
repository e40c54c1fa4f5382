// Package merkle implements the authenticated key/value map backing
// the state store: a sorted-leaf Merkle tree over arbitrary byte keys
// and values, per spec §4.2/GLOSSARY. Leaf and internal hashing follow
// spec exactly (SHA-256(key‖value) leaves, SHA-256(left‖right)
// internals); the sort-then-hash construction is adapted from a
// classic UtxoSetHash, generalized from UTXO outpoints to arbitrary
// state keys.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"sort"
)

// Tree is an immutable snapshot of an authenticated key/value map: a
// sorted list of leaves plus the root hash computed over them. Mutation
// always goes through BatchUpdate, which returns a new Tree rather than
// mutating in place, so a State Store can retain `root_before` and
// `root_after` for the same transition without extra copying.
type Tree struct {
	leaves []leaf
	root   [32]byte
}

type leaf struct {
	key   string
	value []byte
	hash  [32]byte
}

// Empty is the canonical all-zero hash: the root of an empty tree and
// the starting hash of a proof for an absent key. A level with an odd
// node count promotes the unpaired node unchanged rather than pairing
// it with Empty.
var Empty [32]byte

// New builds a Tree from an initial key/value map.
func New(kv map[string][]byte) *Tree {
	t := &Tree{}
	return t.BatchUpdate(kv)
}

// LeafHash is SHA256(key || value).
func LeafHash(key string, value []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(key))
	h.Write(value)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NodeHash is SHA256(left || right).
func NodeHash(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Root returns the current root hash, or Empty for an empty tree.
func (t *Tree) Root() [32]byte {
	if t == nil || len(t.leaves) == 0 {
		return Empty
	}
	return t.root
}

// Get returns the value stored at key, if present.
func (t *Tree) Get(key string) ([]byte, bool) {
	if t == nil {
		return nil, false
	}
	i := sort.Search(len(t.leaves), func(i int) bool { return t.leaves[i].key >= key })
	if i < len(t.leaves) && t.leaves[i].key == key {
		return t.leaves[i].value, true
	}
	return nil, false
}

// Materialize returns the full key/value map underlying the tree.
func (t *Tree) Materialize() map[string][]byte {
	out := make(map[string][]byte, len(t.leaves))
	if t == nil {
		return out
	}
	for _, l := range t.leaves {
		out[l.key] = l.value
	}
	return out
}

// BatchUpdate applies every change in kv (nil value deletes the key) to
// the current tree atomically: a single root recomputation over the
// union of unchanged and changed leaves, satisfying property R1 (batch
// update is equivalent to the corresponding sequence of individual
// updates). Returns the new Tree; the receiver is left untouched.
func (t *Tree) BatchUpdate(kv map[string][]byte) *Tree {
	merged := make(map[string][]byte)
	if t != nil {
		for _, l := range t.leaves {
			merged[l.key] = l.value
		}
	}
	for k, v := range kv {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([]leaf, 0, len(keys))
	for _, k := range keys {
		v := merged[k]
		leaves = append(leaves, leaf{key: k, value: v, hash: LeafHash(k, v)})
	}

	out := &Tree{leaves: leaves}
	out.root = computeRoot(leaves)
	return out
}

func computeRoot(leaves []leaf) [32]byte {
	if len(leaves) == 0 {
		return Empty
	}
	level := make([][32]byte, len(leaves))
	for i, l := range leaves {
		level[i] = l.hash
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Odd count: promote the unpaired hash unchanged.
				next = append(next, level[i])
				continue
			}
			next = append(next, NodeHash(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// Proof is an authentication path from a leaf to the root: one sibling
// hash per level where the node has a sibling, ordered from leaf to
// root (an unpaired node is promoted unchanged and adds no entry), plus
// a bit per entry recording whether the sibling is on the left.
type Proof struct {
	Key         string
	Value       []byte
	Present     bool
	Siblings    [][32]byte
	SiblingLeft []bool
}

// GenerateProof builds an authentication path for key.
func (t *Tree) GenerateProof(key string) Proof {
	if t == nil || len(t.leaves) == 0 {
		return Proof{Key: key, Present: false}
	}
	idx := sort.Search(len(t.leaves), func(i int) bool { return t.leaves[i].key >= key })
	present := idx < len(t.leaves) && t.leaves[idx].key == key

	level := make([][32]byte, len(t.leaves))
	for i, l := range t.leaves {
		level[i] = l.hash
	}

	var siblings [][32]byte
	var left []bool
	pos := idx
	if pos >= len(t.leaves) {
		pos = len(t.leaves) - 1
	}
	for len(level) > 1 {
		var sibIdx int
		var isLeft bool
		if pos%2 == 0 {
			sibIdx = pos + 1
			isLeft = false
		} else {
			sibIdx = pos - 1
			isLeft = true
		}
		if sibIdx < len(level) {
			siblings = append(siblings, level[sibIdx])
			left = append(left, isLeft)
		}

		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, NodeHash(level[i], level[i+1]))
		}
		level = next
		pos /= 2
	}

	var value []byte
	if present {
		value = t.leaves[idx].value
	}
	return Proof{Key: key, Value: value, Present: present, Siblings: siblings, SiblingLeft: left}
}

// VerifyProof checks p against root: recomputes the path from the leaf
// hash (or Empty, for a non-membership proof) up through the recorded
// siblings and compares against root. Empty is never a leaf hash, so a
// proof for an absent key verifies only against the empty tree's root;
// absence from a non-empty tree is not proven by this format.
func VerifyProof(root [32]byte, p Proof) bool {
	var cur [32]byte
	if p.Present {
		cur = LeafHash(p.Key, p.Value)
	} else {
		cur = Empty
	}
	for i, sib := range p.Siblings {
		if p.SiblingLeft[i] {
			cur = NodeHash(sib, cur)
		} else {
			cur = NodeHash(cur, sib)
		}
	}
	return bytes.Equal(cur[:], root[:])
}
