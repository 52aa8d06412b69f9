// Package zonedb implements the versioned trie-backed authoritative zone
// store and its query engine: the "hard part" this repository exists to
// build (spec section 1). Everything else in this module -- dname,
// trie, masterfile, cmd/zoneserve -- exists to feed this package or to
// expose it over the wire.
package zonedb

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/miekg/dns"

	"github.com/dnsauth/qpzone/dname"
	"github.com/dnsauth/qpzone/trie"
)

const defaultBuckets = 16

// dbAttr mirrors the original's loader-state bits (spec section 3's
// "attributes: loader state").
type dbAttr uint32

const (
	attrLoaded dbAttr = 1 << iota
	attrLoading
)

// DB is the zone database (spec section 3). One DB instance holds
// exactly one zone (or zone role); serving multiple zones means running
// multiple DBs, matching how the original's qpdb is one-zone-per-struct.
type DB struct {
	origin  string
	rdclass uint16
	stub    bool

	log *slog.Logger

	treeLock sync.RWMutex
	tree     *trie.Tree // main name trie
	nsec     *trie.Tree // auxiliary: names that own an NSEC
	nsec3    *trie.Tree // auxiliary: NSEC3 owners

	originNode *node

	nodeLocks []sync.RWMutex
	heaps     []*resignHeap

	verMu          sync.Mutex
	versions       []*Version
	currentVersion *Version

	loadState atomic.Uint32 // dbAttr bits

	gluecacheHits   atomic.Int64
	gluecacheMisses atomic.Int64
}

// New creates an empty, unloaded zone database for origin. Call
// BeginLoad/EndLoad (or use masterfile.Load) to populate it before
// querying.
func New(opts Options) (*DB, error) {
	origin := dname.Fqdn(opts.Origin)
	if origin == "" {
		return nil, fmt.Errorf("zonedb: origin is required")
	}
	class := opts.Class
	if class == 0 {
		class = dns.ClassINET
	}
	buckets := opts.Buckets
	if buckets <= 0 {
		buckets = defaultBuckets
	}

	db := &DB{
		origin:    origin,
		rdclass:   class,
		stub:      opts.Stub,
		log:       slog.Default().With("zone", origin),
		tree:      trie.New(),
		nsec:      trie.New(),
		nsec3:     trie.New(),
		nodeLocks: make([]sync.RWMutex, buckets),
		heaps:     make([]*resignHeap, buckets),
	}
	for i := range db.heaps {
		db.heaps[i] = newResignHeap()
	}

	originNode := newNode(origin, buckets)
	db.tree.Insert(origin, originNode)
	db.originNode = originNode

	v := newVersion(db, 1, true)
	db.versions = append(db.versions, v)
	db.currentVersion = v

	return db, nil
}

// GetOriginNode returns the zone's apex node handle.
func (db *DB) GetOriginNode() *node { return db.originNode }

func (db *DB) bucketLock(n *node) *sync.RWMutex { return &db.nodeLocks[n.locknum] }

// CurrentVersion returns the database's current (most recently
// committed) version, attached for the caller.
func (db *DB) CurrentVersion() *Version {
	db.verMu.Lock()
	defer db.verMu.Unlock()
	return db.currentVersion.Attach()
}

// NewVersion opens a new writable version. It fails with ErrExists if a
// writer is already open (spec section 6).
func (db *DB) NewVersion() (*Version, error) {
	db.verMu.Lock()
	defer db.verMu.Unlock()
	if db.currentVersion.writable {
		return nil, ErrExists
	}
	v := newVersion(db, db.currentVersion.serial+1, true)
	v.secure = db.currentVersion.secure
	v.haveNSEC3 = db.currentVersion.haveNSEC3
	v.nsec3 = db.currentVersion.nsec3
	db.versions = append(db.versions, v)
	db.currentVersion = v
	return v, nil
}

// CloseVersion ends a version. commit=true on a writer publishes its
// serial as current; commit=false rolls back, restoring pre-write
// headers (spec section 6). Resign-heap changes made with
// SetSigningTime are not recorded by a version, and a rollback does not
// undo them.
func (db *DB) CloseVersion(v *Version, commit bool) {
	if v.writable && !commit {
		db.rollback(v)
	}
	v.writable = false
	freeGlueStack(v)
	v.release()

	db.verMu.Lock()
	defer db.verMu.Unlock()
	for i, existing := range db.versions {
		if existing == v && v.refs.Load() <= 0 {
			db.versions = append(db.versions[:i], db.versions[i+1:]...)
			break
		}
	}
}

func (db *DB) rollback(v *Version) {
	db.treeLock.Lock()
	defer db.treeLock.Unlock()
	for i := len(v.addedHeaders) - 1; i >= 0; i-- {
		a := v.addedHeaders[i]
		lock := db.bucketLock(a.n)
		lock.Lock()
		a.n.data = a.oldHead
		lock.Unlock()
	}
	for i := len(v.resignedList) - 1; i >= 0; i-- {
		e := v.resignedList[i]
		rh := db.heaps[e.bucket]
		if e.oldPos.inHeap {
			e.header.resign, e.header.resignLSB = e.oldPos.resign, e.oldPos.resignLSB
			rh.insert(e.header)
		}
	}
}

// isLoaded and isLoading report the database's loader state.
func (db *DB) isLoaded() bool  { return dbAttr(db.loadState.Load())&attrLoaded != 0 }
func (db *DB) isLoading() bool { return dbAttr(db.loadState.Load())&attrLoading != 0 }

// NodeCount returns the number of nodes in the main trie plus the
// auxiliary tries.
func (db *DB) NodeCount() int {
	db.treeLock.RLock()
	defer db.treeLock.RUnlock()
	return db.tree.Len() + db.nsec.Len() + db.nsec3.Len()
}

// GlueCacheStats returns (hits, misses) observed so far.
func (db *DB) GlueCacheStats() (hits, misses int64) {
	return db.gluecacheHits.Load(), db.gluecacheMisses.Load()
}

// FindNode looks up name, optionally creating it if absent. The
// returned node's reference count has been incremented; UnlockNode
// releases only the bucket lock and does not drop that reference
// (mirrors findnode/findnsec3node of spec section 6).
func (db *DB) FindNode(name string, create bool) (*node, error) {
	db.treeLock.Lock()
	defer db.treeLock.Unlock()
	n, ok := db.tree.GetByName(name)
	if ok {
		nd := n.(*node)
		nd.newref()
		return nd, nil
	}
	if !create {
		return nil, nil
	}
	nd := newNode(dname.Fqdn(name), len(db.nodeLocks))
	db.tree.Insert(nd.name, nd)
	nd.newref()
	return nd, nil
}

// FindNSEC3Node is FindNode over the auxiliary nsec3 trie.
func (db *DB) FindNSEC3Node(name string, create bool) (*node, error) {
	db.treeLock.Lock()
	defer db.treeLock.Unlock()
	n, ok := db.nsec3.GetByName(name)
	if ok {
		nd := n.(*node)
		nd.newref()
		return nd, nil
	}
	if !create {
		return nil, nil
	}
	nd := newNode(dname.Fqdn(name), len(db.nodeLocks))
	nd.nsec = nsecIsNSEC3
	db.nsec3.Insert(nd.name, nd)
	nd.newref()
	return nd, nil
}

// LockNode/UnlockNode expose the node bucket lock fabric directly (spec
// section 6's locknode/unlocknode), for callers (the loader, tests)
// that need to manipulate a header chain outside of Find/AddRdataset.
func (db *DB) LockNode(n *node, write bool) {
	lock := db.bucketLock(n)
	if write {
		lock.Lock()
	} else {
		lock.RLock()
	}
}

func (db *DB) UnlockNode(n *node, write bool) {
	lock := db.bucketLock(n)
	if write {
		lock.Unlock()
	} else {
		lock.RUnlock()
	}
}

// DeleteData removes a node's entire header chain, detaching it from
// the resign heaps it participates in (spec section 6's deletedata).
func (db *DB) DeleteData(n *node) {
	lock := db.bucketLock(n)
	lock.Lock()
	defer lock.Unlock()
	for h := n.data; h != nil; h = h.next {
		for d := h; d != nil; d = d.down {
			if d.attrs.resign() {
				db.heaps[n.locknum].remove(d)
			}
		}
	}
	n.data = nil
}
