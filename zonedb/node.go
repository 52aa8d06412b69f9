package zonedb

import (
	"hash/fnv"
	"sync/atomic"

	"github.com/dnsauth/qpzone/dname"
)

// nsecClass is a node's relationship to the auxiliary NSEC/NSEC3 tries
// (spec section 3).
type nsecClass int

const (
	nsecNormal nsecClass = iota
	nsecIsNSEC           // this node lives in the nsec trie
	nsecHasNSEC          // this node (in tree) owns an NSEC
	nsecIsNSEC3          // this node lives in the nsec3 trie
)

// node is one owner name (spec section 3's "Node"). Field mutation
// (everything but refs) is always performed under the node's bucket
// lock; refs is atomic because newref/decref must work from callers
// that only hold a tree lock or nothing at all.
type node struct {
	name string

	data *Header // head of the header chain, newest-first per type

	wild         bool // at least one immediate child label is "*"
	findCallback bool // potential delegation point or wildcard parent
	nsec         nsecClass
	locknum      int // bucket index, stable for the node's life

	refs atomic.Int32
}

// Name implements trie.Node.
func (n *node) Name() string { return n.name }

func newNode(name string, lockCount int) *node {
	return &node{
		name:    name,
		locknum: bucketFor(name, lockCount),
	}
}

func bucketFor(name string, lockCount int) int {
	if lockCount <= 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(dname.CanonicalKey(name)))
	return int(h.Sum32() % uint32(lockCount))
}

func (n *node) newref() int32 { return n.refs.Add(1) }

// decref drops a reference, returning the node's remaining count. The
// caller is responsible for arranging removal from the trie once the
// count reaches zero under the tree write lock (spec section 5's "nodes
// are freed only when refcount hits zero under the tree write lock").
func (n *node) decref() int32 { return n.refs.Add(-1) }
