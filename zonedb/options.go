package zonedb

// FindOptions mirrors the DNS_DBFIND_* flags zone_find takes (spec
// section 4.4), plus NOWILD which spec.md mentions only implicitly via
// check_zonecut's node->wild branch (see SPEC_FULL.md's supplemented
// features).
type FindOptions struct {
	// GlueOK allows the search to continue beneath a zone cut instead
	// of immediately returning a delegation.
	GlueOK bool
	// ForceNSEC3 searches the nsec3 trie instead of the main tree.
	ForceNSEC3 bool
	// NoWild suppresses wildcard matching outright.
	NoWild bool
}

// Options configures a new DB (spec section 3's "Zone database").
type Options struct {
	Origin string
	Class  uint16 // defaults to dns.ClassINET
	// Stub marks the zone as a stub zone: there is nothing "above" the
	// delegation, so referrals are always produced and NS-at-origin is
	// not exempted from zone-cut treatment the way it is for ordinary
	// zones (SPEC_FULL.md's supplemented features, grounded on
	// qp-zonedb.c's IS_STUB checks).
	Stub bool
	// Buckets is the number of node lock buckets / resign heaps. It
	// must be set before load and does not change afterward.
	Buckets int
}
