package zonedb

import (
	"sync"
	"sync/atomic"
)

// NSEC3Params mirrors the zone's current NSEC3PARAM, if any.
type NSEC3Params struct {
	Hash       uint8
	Flags      uint8
	Iterations uint16
	Salt       string
}

// Version is a read-only or currently-writable snapshot identity (spec
// section 3). Versions are reference-counted; a version may not be
// finalized until all reader references drop.
type Version struct {
	db *DB

	serial   uint64
	writable bool

	secure    bool
	haveNSEC3 bool
	nsec3     NSEC3Params

	refs atomic.Int32

	mu           sync.Mutex
	records      uint64
	xfrsize      uint64
	resignedList []resignedEntry // heap positions rollback re-inserts; no operation in this package appends to it
	glueStack    []*Header       // headers whose glue_list was populated during this version

	// rollback bookkeeping: per-node, per-type heads to restore on abort.
	addedHeaders []addedHeader
}

type resignedEntry struct {
	header  *Header
	bucket  int
	oldPos  heapPos // position/key to restore on rollback
}

type addedHeader struct {
	n       *node
	oldHead *Header
}

func newVersion(db *DB, serial uint64, writable bool) *Version {
	v := &Version{db: db, serial: serial, writable: writable}
	v.refs.Store(1)
	return v
}

// Attach increments the version's reader reference count.
func (v *Version) Attach() *Version {
	v.refs.Add(1)
	return v
}

// release drops a reader reference. It never frees anything explicitly:
// once nothing references a Version or the Headers it can see, Go's
// garbage collector reclaims them. This is the idiomatic substitute for
// the original's manual refcounted isc_mem_put bookkeeping (see
// DESIGN.md's note on the glue cache's reclamation domain).
func (v *Version) release() {
	v.refs.Add(-1)
}

// Serial returns the version's serial number.
func (v *Version) Serial() uint64 { return v.serial }

// Secure reports whether the zone was secure (had an apex DNSKEY
// rdataset) as of this version.
func (v *Version) Secure() bool { return v.secure }

// NSEC3Parameters returns the version's NSEC3 parameters and whether it
// has any.
func (v *Version) NSEC3Parameters() (NSEC3Params, bool) { return v.nsec3, v.haveNSEC3 }

// Size returns the version's approximate record/xfr accounting.
func (v *Version) Size() (records, xfrsize uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.records, v.xfrsize
}
