package zonedb

import (
	"github.com/miekg/dns"

	"github.com/dnsauth/qpzone/dname"
)

// glueEntry is the additional-section material for one NS target: its
// owner name plus up to an A and an AAAA rdataset (and their RRSIGs).
type glueEntry struct {
	name       string
	a, aaaa    []dns.RR
	sigA       []dns.RR
	sigAAAA    []dns.RR
	required   bool // the NS target is in-bailiwick (spec section 4.8)
	next       *glueEntry
}

// glueChain is the value published through a header's glue_list. A nil
// *glueChain pointer (loaded from the atomic.Pointer) means "not yet
// computed"; a non-nil chain with head==nil means "computed, no glue"
// (the spec's EMPTY sentinel) -- we tell the two apart with the
// computed flag rather than a distinguished sentinel pointer, since Go
// has no portable (void*)-1.
type glueChain struct {
	computed bool
	head     *glueEntry
}

// AddGlue implements spec section 4.8's addglue: given an NS rdataset
// at a zonecut node, return the additional-section A/AAAA (and RRSIGs)
// for each NS target, computing and caching the result on first use.
//
// The original publishes the cached value with a CAS under an
// RCU-style read-side-concurrent reclamation domain and defers freeing
// the loser of the CAS race, and the owning glue list, to the version's
// close. In Go there is no manual free to defer: once no goroutine
// holds a reference to a glueChain, the garbage collector reclaims it.
// We keep the atomic.Pointer CAS publish (so concurrent callers agree
// on one winner and do the expensive computation at most once each),
// and keep the version's glueStack purely for bookkeeping/stats parity
// with the original rather than for correctness.
func (db *DB) AddGlue(version *Version, nsHeader *Header, nsOwner string, msg *dns.Msg) error {
	if nsHeader.typ.rrtype != dns.TypeNS {
		return badDB("addglue", nsOwner, "rdataset is not NS")
	}

	gc := nsHeader.glueList.Load()
	if gc == nil {
		computed := db.computeGlue(version, nsHeader, nsOwner)
		if nsHeader.glueList.CompareAndSwap(nil, computed) {
			gc = computed
			if computed.head != nil {
				version.mu.Lock()
				version.glueStack = append(version.glueStack, nsHeader)
				nsHeader.onGlueStack = true
				version.mu.Unlock()
			}
			db.gluecacheMisses.Add(1)
		} else {
			gc = nsHeader.glueList.Load()
			db.gluecacheHits.Add(1)
		}
	} else {
		db.gluecacheHits.Add(1)
	}

	addGlueToMessage(gc, msg)
	return nil
}

// computeGlue performs the actual lookups, calling zone_find for each
// NS target's A and AAAA under GLUEOK (spec section 4.8's newglue).
func (db *DB) computeGlue(version *Version, nsHeader *Header, nsOwner string) *glueChain {
	gc := &glueChain{computed: true}
	seen := make(map[string]*glueEntry)

	for _, rr := range nsHeader.rrs {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		target := ns.Ns
		entry, ok := seen[target]
		if !ok {
			entry = &glueEntry{name: target}
		}

		if a, sig, res := db.findGlueRRset(version, target, dns.TypeA); res == ResultGlue {
			entry.a, entry.sigA = a, sig
		}
		if aaaa, sig, res := db.findGlueRRset(version, target, dns.TypeAAAA); res == ResultGlue {
			entry.aaaa, entry.sigAAAA = aaaa, sig
		}

		if entry.a == nil && entry.aaaa == nil {
			continue
		}
		if dname.IsSubdomain(target, nsOwner) {
			entry.required = true
		}
		if !ok {
			seen[target] = entry
			entry.next = gc.head
			gc.head = entry
		}
	}
	return gc
}

func (db *DB) findGlueRRset(version *Version, name string, rrtype uint16) ([]dns.RR, []dns.RR, Result) {
	res, _, found, sig, _ := db.Find(name, version, rrtype, FindOptions{GlueOK: true})
	if res != ResultGlue && res != ResultSuccess {
		return nil, nil, res
	}
	var a, s []dns.RR
	if found != nil {
		a = found.rrs
	}
	if sig != nil {
		s = sig.rrs
	}
	return a, s, res
}

func addGlueToMessage(gc *glueChain, msg *dns.Msg) {
	if gc == nil || !gc.computed {
		return
	}
	var requiredNames []string
	for e := gc.head; e != nil; e = e.next {
		for _, rr := range e.a {
			msg.Extra = append(msg.Extra, dns.Copy(rr))
		}
		for _, rr := range e.sigA {
			msg.Extra = append(msg.Extra, dns.Copy(rr))
		}
		for _, rr := range e.aaaa {
			msg.Extra = append(msg.Extra, dns.Copy(rr))
		}
		for _, rr := range e.sigAAAA {
			msg.Extra = append(msg.Extra, dns.Copy(rr))
		}
		if e.required {
			requiredNames = append(requiredNames, e.name)
		}
	}
	if len(requiredNames) == 0 {
		return
	}
	// Required (in-bailiwick) glue must be rendered even if the
	// additional section is later truncated, so move it to the front
	// (spec section 4.8's render-time note).
	required := make(map[string]bool, len(requiredNames))
	for _, n := range requiredNames {
		required[n] = true
	}
	front := make([]dns.RR, 0, len(msg.Extra))
	back := make([]dns.RR, 0, len(msg.Extra))
	for _, rr := range msg.Extra {
		if required[rr.Header().Name] {
			front = append(front, rr)
		} else {
			back = append(back, rr)
		}
	}
	msg.Extra = append(front, back...)
}

// freeGlueStack is invoked when a version is closed; there is nothing
// to free explicitly (see AddGlue's doc comment), so this only clears
// the bookkeeping flag.
func freeGlueStack(v *Version) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, h := range v.glueStack {
		h.onGlueStack = false
	}
	v.glueStack = nil
}
