// Package trie implements the name-indexed trie contract consumed by the
// zone database (spec section 4.1). The core does not specify how the
// trie is built internally, only the operations it needs: point lookup
// that also yields the ancestor chain walked to get there, insertion,
// deletion, and a canonical-order cursor.
//
// The point-lookup and ancestor-chain behaviour are grounded directly on
// the teacher's zone.go: Zone embeds a *radix.Radix and its Find/FindFunc
// already return "closest non-nil ancestor, exact bool" and "run a
// callback on every node visited with a non-nil value", which is exactly
// the {status, chain} pair this package's Lookup returns. Canonical-order
// iteration (Next/Prev, used by find_closest_nsec and wildcard_blocked)
// is layered on top with a sorted key index, since NSEC/NSEC3 walking
// needs wraparound and predecessor steps that do not depend on the radix
// tree's own traversal order.
package trie

import (
	"sort"

	"github.com/miekg/radix"

	"github.com/dnsauth/qpzone/dname"
)

// Status is the outcome of a Lookup.
type Status int

const (
	NotFound Status = iota
	Partial
	Exact
)

// Node is the payload the trie stores at each name. zonedb's node type
// implements this.
type Node interface {
	Name() string
}

// Chain is the ordered list of ancestor nodes visited during a Lookup,
// closest-last. On an exact match the last entry is the matched node
// itself; callers that only want strict ancestors trim it off (this is
// what zone_find does at step 2).
type Chain []Node

// Tree is a name-indexed trie of Node values.
type Tree struct {
	r    *radix.Radix
	keys []string         // sorted canonical keys, parallel index for ordered iteration
	byky map[string]string // canonical key -> original name, for Current()/Next()/Prev()
}

// New returns an empty trie.
func New() *Tree {
	return &Tree{r: radix.New(), byky: make(map[string]string)}
}

// Insert adds or replaces the node stored at name.
func (t *Tree) Insert(name string, n Node) {
	k := dname.CanonicalKey(name)
	if _, existed := t.byky[k]; !existed {
		i := sort.SearchStrings(t.keys, k)
		t.keys = append(t.keys, "")
		copy(t.keys[i+1:], t.keys[i:])
		t.keys[i] = k
	}
	t.byky[k] = name
	t.r.Insert(k, n)
}

// Delete removes the node stored at name, if any.
func (t *Tree) Delete(name string) {
	k := dname.CanonicalKey(name)
	if _, existed := t.byky[k]; !existed {
		return
	}
	delete(t.byky, k)
	t.r.Remove(k)
	i := sort.SearchStrings(t.keys, k)
	if i < len(t.keys) && t.keys[i] == k {
		t.keys = append(t.keys[:i], t.keys[i+1:]...)
	}
}

// Len returns the number of names stored in the trie.
func (t *Tree) Len() int { return len(t.keys) }

// GetByName returns the node stored exactly at name.
func (t *Tree) GetByName(name string) (Node, bool) {
	rn, exact := t.r.Find(dname.CanonicalKey(name))
	if rn == nil || !exact || rn.Value == nil {
		return nil, false
	}
	return rn.Value.(Node), true
}

// Lookup finds name in the trie, returning the match status, a cursor
// positioned at the result (or, on a partial match, the closest
// ancestor found), the ancestor chain walked to get there, and the node
// at the final position (nil on NotFound).
func (t *Tree) Lookup(name string) (Status, *Iterator, Chain, Node) {
	var chain Chain
	target := dname.CanonicalKey(name)
	rn, exact, _ := t.r.FindFunc(target, func(v interface{}) bool {
		if v != nil {
			chain = append(chain, v.(Node))
		}
		return false
	})

	it := &Iterator{tree: t}
	if rn == nil || rn.Value == nil {
		return NotFound, it, chain, nil
	}
	it.pos = sort.SearchStrings(t.keys, dname.CanonicalKey(rn.Value.(Node).Name()))
	if exact {
		return Exact, it, chain, rn.Value.(Node)
	}
	return Partial, it, chain, rn.Value.(Node)
}

// Iterator is a canonical-order cursor over the trie.
type Iterator struct {
	tree *Tree
	pos  int // index into tree.keys; may be len(tree.keys) to mean "off the end"
}

// Current returns the name/node the cursor is positioned at.
func (it *Iterator) Current() (string, Node, bool) {
	if it.pos < 0 || it.pos >= len(it.tree.keys) {
		return "", nil, false
	}
	k := it.tree.keys[it.pos]
	n, _ := it.tree.GetByName(it.tree.byky[k])
	return it.tree.byky[k], n, n != nil
}

// Next advances the cursor to the next name in canonical order. wrapped
// reports whether the step crossed the end of the trie back to its
// beginning (the NEWORIGIN signal of spec section 4.1, specialised to a
// single-zone trie where there is exactly one origin to wrap around).
func (it *Iterator) Next() (name string, n Node, wrapped bool, ok bool) {
	if len(it.tree.keys) == 0 {
		return "", nil, false, false
	}
	it.pos++
	if it.pos >= len(it.tree.keys) {
		it.pos = 0
		wrapped = true
	}
	name, n, ok = it.Current()
	return name, n, wrapped, ok
}

// Prev steps the cursor backward; see Next for the wrapped semantics.
func (it *Iterator) Prev() (name string, n Node, wrapped bool, ok bool) {
	if len(it.tree.keys) == 0 {
		return "", nil, false, false
	}
	it.pos--
	if it.pos < 0 {
		it.pos = len(it.tree.keys) - 1
		wrapped = true
	}
	name, n, ok = it.Current()
	return name, n, wrapped, ok
}

// Clone returns an independent copy of the cursor at the same position,
// so a caller can probe forward/backward without disturbing the
// original (wildcard_blocked does exactly this).
func (it *Iterator) Clone() *Iterator {
	cp := *it
	return &cp
}
