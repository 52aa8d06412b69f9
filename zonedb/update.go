package zonedb

import (
	"fmt"

	"github.com/miekg/dns"
)

// AddRdataset implements spec section 6's write-path primitive: add (or
// replace, as a new MVCC-visible version) the rdataset for (rrtype,
// covers) at n. It returns ErrUnchanged if the rdataset is identical to
// what is already active at version's serial, matching dns_db's own
// no-op convention rather than silently no-op'ing.
func (db *DB) AddRdataset(version *Version, n *node, rrtype, covers uint16, ttl uint32, rrs []dns.RR) error {
	if !version.writable {
		return fmt.Errorf("zonedb: version is not writable")
	}

	lock := db.bucketLock(n)
	lock.Lock()
	defer lock.Unlock()

	typ := typePair{rrtype: rrtype, covers: covers}
	var pred, head *Header
	for h := n.data; h != nil; h = h.next {
		if h.typ == typ {
			head = h
			break
		}
		pred = h
	}

	if head != nil {
		if active, tomb := activeAt(head, version.serial); active != nil && !tomb && rdatasetEqual(active.rrs, rrs) {
			return ErrUnchanged
		}
	}

	newHead := newHeader(typ, version.serial, rrs, ttl, 0)
	newHead.node = n
	newHead.down = head

	version.mu.Lock()
	version.addedHeaders = append(version.addedHeaders, addedHeader{n: n, oldHead: n.data})
	version.records += uint64(len(rrs))
	version.mu.Unlock()

	if head != nil {
		newHead.next = head.next
		if pred != nil {
			pred.next = newHead
		} else {
			n.data = newHead
		}
	} else {
		newHead.next = n.data
		n.data = newHead
	}
	return nil
}

// SubtractRdataset removes remove's members from the active rdataset at
// (n, rrtype, covers), publishing the remainder as a new version (or a
// tombstone if nothing remains). ErrUnchanged reports that none of
// remove's members were actually present.
func (db *DB) SubtractRdataset(version *Version, n *node, rrtype, covers uint16, remove []dns.RR) error {
	lock := db.bucketLock(n)
	lock.RLock()
	var current []dns.RR
	var ttl uint32
	typ := typePair{rrtype: rrtype, covers: covers}
	for h := n.data; h != nil; h = h.next {
		if h.typ != typ {
			continue
		}
		if active, tomb := activeAt(h, version.serial); active != nil && !tomb {
			current, ttl = active.rrs, active.ttl
		}
		break
	}
	lock.RUnlock()

	if current == nil {
		return ErrUnchanged
	}
	remaining := subtractRRs(current, remove)
	if len(remaining) == len(current) {
		return ErrUnchanged
	}
	return db.AddRdataset(version, n, rrtype, covers, ttl, remaining)
}

// DeleteRdataset tombstones the rdataset at (n, rrtype, covers): it
// becomes NONEXISTENT as of version's serial but older versions still
// see it (spec section 3's header lifecycle).
func (db *DB) DeleteRdataset(version *Version, n *node, rrtype, covers uint16) error {
	return db.AddRdataset(version, n, rrtype, covers, 0, nil)
}

// FindRdataset returns the header active at version's serial for
// (rrtype, covers) at n, or nil.
func (db *DB) FindRdataset(n *node, version *Version, rrtype, covers uint16) *Header {
	lock := db.bucketLock(n)
	lock.RLock()
	defer lock.RUnlock()
	return findType(n.data, rrtype, covers, version.serial)
}

// AllRdatasets returns every rdataset active at n as of version's
// serial, one Header per (rrtype, covers) pair.
func (db *DB) AllRdatasets(n *node, version *Version) []*Header {
	lock := db.bucketLock(n)
	lock.RLock()
	defer lock.RUnlock()

	var out []*Header
	for h := n.data; h != nil; h = h.next {
		if active, tomb := activeAt(h, version.serial); active != nil && !tomb {
			out = append(out, active)
		}
	}
	return out
}

// IsSecure, GetNSEC3Parameters and GetSize expose the per-version
// properties of spec section 6 as DB operations, the way the original
// API surfaces them off the database handle rather than the version.
func (db *DB) IsSecure(v *Version) bool { return v.Secure() }

func (db *DB) GetNSEC3Parameters(v *Version) (NSEC3Params, bool) { return v.NSEC3Parameters() }

func (db *DB) GetSize(v *Version) (records, xfrsize uint64) { return v.Size() }

// SetSigningTime and GetSigningTime expose the resign heap (spec
// section 4.3) as DB operations: a node's owner must be known to reach
// its bucket heap.
func (db *DB) SetSigningTime(n *node, h *Header, resign uint32, resignLSB uint8) {
	setSigningTime(db.heaps[n.locknum], h, resign, resignLSB)
}

func (db *DB) GetSigningTime() (*Header, *node) {
	return getSigningTime(db)
}

// SetGlueCacheStats resets the glue-cache hit/miss counters, mainly for
// test setup.
func (db *DB) SetGlueCacheStats(hits, misses int64) {
	db.gluecacheHits.Store(hits)
	db.gluecacheMisses.Store(misses)
}

func rdatasetEqual(a, b []dns.RR) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, rr := range a {
		seen[rr.String()]++
	}
	for _, rr := range b {
		s := rr.String()
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func subtractRRs(current, remove []dns.RR) []dns.RR {
	drop := make(map[string]bool, len(remove))
	for _, rr := range remove {
		drop[rr.String()] = true
	}
	out := make([]dns.RR, 0, len(current))
	for _, rr := range current {
		if !drop[rr.String()] {
			out = append(out, rr)
		}
	}
	return out
}
