// Package masterfile adapts github.com/miekg/dns's zone-file parser to
// the zonedb loader. The wire-format parser and master-file loader are
// explicitly out of this repository's core scope (spec section 1); this
// package is the thin external-collaborator seam the core spec leaves
// for them, grounded on the teacher's own master-file reading (zone.go's
// ReadZone) but rebuilt on dns.ZoneParser instead of hand-rolled
// line scanning.
package masterfile

import (
	"fmt"
	"io"

	"github.com/miekg/dns"

	"github.com/dnsauth/qpzone/zonedb"
)

type rrsetKey struct {
	owner  string
	rrtype uint16
	covers uint16
}

type rrsetGroup struct {
	ttl uint32
	rrs []dns.RR
}

// Load reads an RFC 1035 master file from r and populates db, grouping
// all records sharing an (owner, type, covers), wherever they appear in
// the file, into the single rdataset LoadRRset expects. Rdatasets are
// loaded in the order their first record appears.
func Load(db *zonedb.DB, origin string, r io.Reader) error {
	if err := db.BeginLoad(); err != nil {
		return err
	}

	groups := make(map[rrsetKey]*rrsetGroup)
	var order []rrsetKey

	zp := dns.NewZoneParser(r, dns.Fqdn(origin), "")
	zp.SetIncludeAllowed(true)

	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		h := rr.Header()
		var covers uint16
		if sig, isSig := rr.(*dns.RRSIG); isSig {
			covers = sig.TypeCovered
		}
		k := rrsetKey{owner: h.Name, rrtype: h.Rrtype, covers: covers}
		g, exists := groups[k]
		if !exists {
			g = &rrsetGroup{ttl: h.Ttl}
			groups[k] = g
			order = append(order, k)
		}
		g.rrs = append(g.rrs, rr)
	}
	if err := zp.Err(); err != nil {
		return fmt.Errorf("masterfile: parse %s: %w", origin, err)
	}

	for _, k := range order {
		g := groups[k]
		if err := db.LoadRRset(k.owner, k.rrtype, g.ttl, g.rrs); err != nil {
			return fmt.Errorf("masterfile: %s %s: %w", k.owner, dns.TypeToString[k.rrtype], err)
		}
	}

	return db.EndLoad()
}
