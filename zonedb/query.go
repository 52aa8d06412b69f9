package zonedb

import (
	"github.com/miekg/dns"

	"github.com/dnsauth/qpzone/dname"
	"github.com/dnsauth/qpzone/trie"
)

// search carries the parameters one Find call threads through its
// helpers (spec section 4.4's zone_find and the functions it calls).
type search struct {
	db      *DB
	version *Version
	serial  uint64
	opts    FindOptions
	qname   string

	// belowCut is set once check_zonecut lets a GLUEOK search pass a
	// real zone cut rather than stopping there, and names the cut node
	// that was crossed. Everything found from here on is glue, not an
	// ordinary answer (spec section 4.4 step 5).
	belowCut *node
}

// Find is the zone_find query engine (spec section 4.4): given a name
// and an rtype, walk the trie to the closest match, resolve zone cuts,
// CNAME/DNAME redirection, wildcard synthesis and NSEC/NSEC3 denial of
// existence, and report which of those outcomes applies.
//
// The five return values are (result, matched node, matched rdataset,
// its covering RRSIG if any, the name the rdataset was actually found
// at -- which is the zone cut's owner on a delegation or DNAME match,
// and name itself on a wildcard match).
//
// version may be nil, in which case the database's current version is
// used for the duration of the call.
func (db *DB) Find(name string, version *Version, qtype uint16, opts FindOptions) (Result, *node, *Header, *Header, string) {
	if !db.isLoaded() {
		return ResultBadDB, nil, nil, nil, ""
	}
	if version == nil {
		version = db.CurrentVersion()
		defer version.release()
	}

	s := &search{db: db, version: version, serial: version.serial, opts: opts, qname: dname.Fqdn(name)}

	tree := db.tree
	if opts.ForceNSEC3 {
		tree = db.nsec3
	}

	db.treeLock.RLock()
	status, _, chain, matched := tree.Lookup(s.qname)
	db.treeLock.RUnlock()

	length := len(chain)
	if status == trie.Exact {
		length--
	}

	var zcut *node
	var zcutHeader, zcutSig *Header
	var zcutResult Result

	for i := 0; i < length; i++ {
		encloser, ok := chain[i].(*node)
		if !ok || !encloser.findCallback {
			continue
		}
		res, zc, zch, zcs, cont := db.checkZonecut(s, encloser)
		if !cont {
			zcut, zcutHeader, zcutSig, zcutResult = zc, zch, zcs, res
			status = trie.Partial
			matched = encloser
			break
		}
	}

	switch status {
	case trie.NotFound:
		return ResultNotFound, nil, nil, nil, ""

	case trie.Partial:
		if zcut != nil {
			if zcutResult == ResultDNAME {
				return ResultDNAME, zcut, zcutHeader, zcutSig, zcut.name
			}
			return ResultDelegation, zcut, zcutHeader, zcutSig, zcut.name
		}
		encloser, _ := matched.(*node)
		if encloser != nil && encloser.wild && !opts.NoWild {
			return db.findWildcard(s, encloser, qtype)
		}
		return db.findClosestNSEC(s, s.qname, opts.ForceNSEC3)

	default: // trie.Exact
		n := matched.(*node)
		return db.exactMatch(s, n, qtype)
	}
}

// checkZonecut implements spec section 4.4's check_zonecut: decide
// whether an ancestor visited on the way down is a delegation point or
// a DNAME, in which case the search must stop short of an exact match.
// cont reports whether the walk should continue past n.
func (db *DB) checkZonecut(s *search, n *node) (res Result, zcut *node, zcutHeader, zcutSig *Header, cont bool) {
	lock := db.bucketLock(n)
	lock.RLock()
	defer lock.RUnlock()

	if dname.Equal(n.name, db.origin) && !db.stub {
		return ResultSuccess, nil, nil, nil, true
	}

	if ns := findType(n.data, dns.TypeNS, 0, s.serial); ns != nil {
		if s.opts.GlueOK {
			// The caller is intentionally resolving beneath a cut
			// (e.g. glue lookup); let the walk continue, but remember
			// it so whatever turns up past here is classified as glue.
			s.belowCut = n
			return ResultSuccess, nil, nil, nil, true
		}
		sig := findType(n.data, dns.TypeRRSIG, dns.TypeNS, s.serial)
		return ResultDelegation, n, ns, sig, false
	}

	if dn := findType(n.data, dns.TypeDNAME, 0, s.serial); dn != nil {
		sig := findType(n.data, dns.TypeRRSIG, dns.TypeDNAME, s.serial)
		return ResultDNAME, n, dn, sig, false
	}

	return ResultSuccess, nil, nil, nil, true
}

// atParentSide reports whether qtype is answered from a zone cut's own
// data instead of being referred or demoted to glue. NSEC/NSEC3/KEY are
// the parent-side types spec section 4.4 step 5 names outright; DS is
// SPEC_FULL.md's own addition to the same exemption, since a DS query
// at a delegation point must be answered locally or the delegation
// can never be validated.
func atParentSide(qtype uint16) bool {
	switch qtype {
	case dns.TypeNSEC, dns.TypeNSEC3, dns.TypeKEY, dns.TypeDS:
		return true
	default:
		return false
	}
}

// exactMatch implements the tail of zone_find once the trie walk has
// landed exactly on n: zone-cut and DNAME checks at the matched node
// itself, then CNAME, then the requested type (spec section 4.4).
func (db *DB) exactMatch(s *search, n *node, qtype uint16) (Result, *node, *Header, *Header, string) {
	lock := db.bucketLock(n)
	lock.RLock()
	defer lock.RUnlock()

	if (!dname.Equal(n.name, db.origin) || db.stub) && qtype != dns.TypeNS && !atParentSide(qtype) {
		if ns := findType(n.data, dns.TypeNS, 0, s.serial); ns != nil {
			sig := findType(n.data, dns.TypeRRSIG, dns.TypeNS, s.serial)
			if s.opts.GlueOK {
				// found != null under a zonecut: ANY at the cut itself
				// is a zonecut answer, anything else is glue.
				if qtype == dns.TypeANY {
					return ResultZonecut, n, ns, sig, n.name
				}
				return ResultGlue, n, ns, sig, n.name
			}
			return ResultDelegation, n, ns, sig, n.name
		}
		if dn := findType(n.data, dns.TypeDNAME, 0, s.serial); dn != nil {
			sig := findType(n.data, dns.TypeRRSIG, dns.TypeDNAME, s.serial)
			return ResultDNAME, n, dn, sig, n.name
		}
	}

	if qtype != dns.TypeCNAME {
		if cn := findType(n.data, dns.TypeCNAME, 0, s.serial); cn != nil {
			sig := findType(n.data, dns.TypeRRSIG, dns.TypeCNAME, s.serial)
			if s.belowCut != nil {
				return ResultGlue, n, cn, sig, n.name
			}
			return ResultCNAME, n, cn, sig, n.name
		}
	}

	hdr := findType(n.data, qtype, 0, s.serial)
	if hdr == nil {
		if !chainActive(n.data, s.serial, false) {
			return ResultEmptyName, n, nil, nil, n.name
		}
		if s.version.secure {
			if nsec := findType(n.data, dns.TypeNSEC, 0, s.serial); nsec != nil {
				sig := findType(n.data, dns.TypeRRSIG, dns.TypeNSEC, s.serial)
				return ResultNXRRset, n, nsec, sig, n.name
			}
		}
		return ResultNXRRset, n, nil, nil, n.name
	}
	sig := findType(n.data, dns.TypeRRSIG, qtype, s.serial)
	if s.belowCut != nil {
		return ResultGlue, n, hdr, sig, n.name
	}
	return ResultSuccess, n, hdr, sig, n.name
}

// findWildcard implements spec section 4.5: a partial match that
// stopped at a node whose wild flag is set tries the synthetic
// "*.<encloser>" owner, subject to wildcard_blocked ruling it out.
func (db *DB) findWildcard(s *search, encloser *node, qtype uint16) (Result, *node, *Header, *Header, string) {
	wcname := dname.WildcardFor(encloser.name)

	db.treeLock.RLock()
	v, ok := db.tree.GetByName(wcname)
	db.treeLock.RUnlock()
	if !ok {
		return db.findClosestNSEC(s, s.qname, s.opts.ForceNSEC3)
	}
	wn := v.(*node)

	if wildcardBlocked(db, s.version, s.qname, encloser.name) {
		return db.findClosestNSEC(s, s.qname, s.opts.ForceNSEC3)
	}

	lock := db.bucketLock(wn)
	lock.RLock()
	defer lock.RUnlock()

	if qtype != dns.TypeCNAME {
		if cn := findType(wn.data, dns.TypeCNAME, 0, s.serial); cn != nil {
			sig := findType(wn.data, dns.TypeRRSIG, dns.TypeCNAME, s.serial)
			if s.belowCut != nil {
				return ResultGlue, wn, cn, sig, s.qname
			}
			return ResultCNAME, wn, cn, sig, s.qname
		}
	}

	hdr := findType(wn.data, qtype, 0, s.serial)
	if hdr == nil {
		if !chainActive(wn.data, s.serial, false) {
			return db.findClosestNSEC(s, s.qname, s.opts.ForceNSEC3)
		}
		return ResultEmptyWild, wn, nil, nil, s.qname
	}
	sig := findType(wn.data, dns.TypeRRSIG, qtype, s.serial)
	if s.belowCut != nil {
		return ResultGlue, wn, hdr, sig, s.qname
	}
	return ResultSuccess, wn, hdr, sig, s.qname
}

// wildcardBlocked reports whether some name strictly between qname and
// encloserName is itself present in the tree with active data -- RFC
// 4592's rule that a more specific name, even an empty non-terminal,
// takes precedence over wildcard synthesis (spec section 4.5).
func wildcardBlocked(db *DB, version *Version, qname, encloserName string) bool {
	total := dname.CountLabels(qname)
	encLabels := dname.CountLabels(encloserName)

	for keep := total - 1; keep > encLabels; keep-- {
		candidate := dname.LabelSequence(qname, keep)

		db.treeLock.RLock()
		v, ok := db.tree.GetByName(candidate)
		db.treeLock.RUnlock()
		if !ok {
			continue
		}
		n := v.(*node)
		lock := db.bucketLock(n)
		lock.RLock()
		active := chainActive(n.data, version.serial, false)
		lock.RUnlock()
		if active {
			return true
		}
	}
	return false
}

// findClosestNSEC implements spec section 4.6: on NXDOMAIN/NXRRSET-ish
// outcomes in a secure zone, locate the closest NSEC (or NSEC3) owner at
// or before qname in canonical order, so the caller can attach a denial
// proof. If the zone carries no NSEC/NSEC3 chain this degrades to a bare
// NXDOMAIN with no proof, which is a legitimate (if unsigned) outcome.
func (db *DB) findClosestNSEC(s *search, qname string, isNSEC3 bool) (Result, *node, *Header, *Header, string) {
	auxTree := db.nsec
	rrtype := uint16(dns.TypeNSEC)
	if isNSEC3 {
		auxTree = db.nsec3
		rrtype = dns.TypeNSEC3
	}

	db.treeLock.RLock()
	total := auxTree.Len()
	_, iter, _, _ := auxTree.Lookup(qname)
	db.treeLock.RUnlock()

	if total == 0 {
		return ResultNXDomain, nil, nil, nil, ""
	}

	for i := 0; i < total; i++ {
		name, v, _, ok := iter.Prev()
		if !ok {
			break
		}
		n, ok := v.(*node)
		if !ok {
			continue
		}
		lock := db.bucketLock(n)
		lock.RLock()
		hdr := findType(n.data, rrtype, 0, s.serial)
		sig := findType(n.data, dns.TypeRRSIG, rrtype, s.serial)
		lock.RUnlock()
		if hdr != nil {
			return ResultNXDomain, n, hdr, sig, name
		}
	}
	return ResultNXDomain, nil, nil, nil, ""
}

// matchParams reports whether a version's NSEC3PARAM matches the salt,
// iterations and hash algorithm of an NSEC3 record found during a
// lookup -- qp-zonedb.c's matchparams, needed because a zone mid
// NSEC3 parameter rollover can carry two NSEC3 chains at once (spec
// section 4 supplemented features).
func matchParams(rec *dns.NSEC3, p NSEC3Params) bool {
	return rec.Hash == p.Hash && rec.Iterations == p.Iterations && rec.Salt == p.Salt
}
