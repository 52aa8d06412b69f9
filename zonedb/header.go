package zonedb

import (
	"sync/atomic"

	"github.com/miekg/dns"
)

// attrs is the atomic bitset over {NONEXISTENT, IGNORE, RESIGN, ANCIENT}
// from spec section 3. It is loaded with acquire semantics and stored
// with release semantics so a reader observing !NONEXISTENT also
// observes the header's rdata slice fully written (spec section 5).
type attrs struct {
	bits atomic.Uint32
}

const (
	attrNonexistent uint32 = 1 << iota
	attrIgnore
	attrResign
	attrAncient
)

func (a *attrs) load() uint32            { return a.bits.Load() }
func (a *attrs) has(mask uint32) bool    { return a.bits.Load()&mask != 0 }
func (a *attrs) exists() bool            { return !a.has(attrNonexistent) }
func (a *attrs) nonexistent() bool       { return a.has(attrNonexistent) }
func (a *attrs) ignore() bool            { return a.has(attrIgnore) }
func (a *attrs) resign() bool            { return a.has(attrResign) }
func (a *attrs) ancient() bool           { return a.has(attrAncient) }

func (a *attrs) set(mask uint32) {
	for {
		old := a.bits.Load()
		if old&mask == mask {
			return
		}
		if a.bits.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

func (a *attrs) clear(mask uint32) {
	for {
		old := a.bits.Load()
		if old&mask == 0 {
			return
		}
		if a.bits.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// typePair is a (rrtype, covers) pair: for non-RRSIG sets covers is 0,
// for RRSIG sets covers names the covered type (spec section 3).
type typePair struct {
	rrtype uint16
	covers uint16
}

func pairFor(rrtype uint16) typePair {
	if rrtype == dns.TypeRRSIG {
		// sigtype() below fills in covers once the covered rdataset
		// is known; a bare RRSIG type pair is only ever used as a
		// lookup key, never stored, so covers==0 here is fine.
		return typePair{rrtype: dns.TypeRRSIG}
	}
	return typePair{rrtype: rrtype}
}

func sigtype(covered uint16) typePair {
	return typePair{rrtype: dns.TypeRRSIG, covers: covered}
}

// Header is one record-set header at one node at one serial (spec
// section 3). The rdata "slab" itself -- the byte layout of a record
// set -- is explicitly out of scope (spec section 1); we hold the
// record set as a plain []dns.RR, the same representation the wire
// codec and master-file loader (both external collaborators per the
// same section) natively produce and consume.
type Header struct {
	typ   typePair
	attrs attrs

	serial uint64
	ttl    uint32
	trust  uint8
	count  uint32

	rrs []dns.RR

	next *Header // same node, next (type,covers)
	down *Header // same node+type, previous serial (the MVCC stack)

	node *node // back-reference, only dereferenced under node's bucket lock

	heapIndex int    // 1-based index into its bucket's resign heap; 0 = not in heap
	resign    uint32 // next resign time, truncated to 31 bits
	resignLSB uint8  // low bit of the untruncated time

	glueList    atomic.Pointer[glueChain]
	onGlueStack bool // guarded by the owning version's mutex
}

// RRs returns the header's record set. Callers must not mutate the
// returned slice; it is shared with every reader holding this Header.
func (h *Header) RRs() []dns.RR { return h.rrs }

// TTL returns the header's TTL.
func (h *Header) TTL() uint32 { return h.ttl }

func newHeader(typ typePair, serial uint64, rrs []dns.RR, ttl uint32, trust uint8) *Header {
	h := &Header{
		typ:    typ,
		serial: serial,
		rrs:    rrs,
		ttl:    ttl,
		trust:  trust,
		count:  uint32(len(rrs)),
	}
	if len(rrs) == 0 {
		h.attrs.set(attrNonexistent)
	}
	return h
}

// activeAt returns the header version of this chain entry visible at
// searchSerial, walking the MVCC "down" stack, and whether that version
// is a tombstone. This is the one primitive used everywhere in the
// query engine (spec section 4.2, "Find by (type, covers) at serial").
func activeAt(h *Header, searchSerial uint64) (found *Header, nonexistent bool) {
	for h != nil {
		if h.serial <= searchSerial && !h.attrs.ignore() {
			return h, h.attrs.nonexistent()
		}
		h = h.down
	}
	return nil, false
}

// chainActive reports whether any rdataset in the chain starting at head
// has a version (found down its MVCC stack) that is visible and extant
// at searchSerial and, unless includeAncient is set, not ANCIENT -- the
// predicate used to decide if a node is "active".
func chainActive(head *Header, searchSerial uint64, includeAncient bool) bool {
	for h := head; h != nil; h = h.next {
		found, tomb := activeAt(h, searchSerial)
		if found == nil || tomb {
			continue
		}
		if !includeAncient && found.attrs.ancient() {
			continue
		}
		return true
	}
	return false
}

// findType walks the per-node type chain for (rrtype, covers) and
// returns the header visible at searchSerial, or nil if absent or a
// tombstone.
func findType(head *Header, rrtype, covers uint16, searchSerial uint64) *Header {
	want := typePair{rrtype: rrtype, covers: covers}
	for h := head; h != nil; h = h.next {
		if h.typ != want {
			continue
		}
		found, tomb := activeAt(h, searchSerial)
		if found == nil || tomb {
			return nil
		}
		return found
	}
	return nil
}
