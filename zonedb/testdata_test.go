package zonedb

import (
	"testing"

	"github.com/miekg/dns"
)

// mustRR parses a single master-file line into an RR, failing the test
// on a parse error.
func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("dns.NewRR(%q): %v", s, err)
	}
	return rr
}

// buildTestZone loads a small but structurally complete zone: apex SOA
// and NS, an A record, a CNAME, a delegated subdomain with in-bailiwick
// glue, and a wildcard -- enough to exercise exact match, delegation,
// CNAME following, glue and wildcard synthesis in one fixture.
func buildTestZone(t *testing.T) *DB {
	t.Helper()
	db, err := New(Options{Origin: "example.com.", Buckets: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.BeginLoad(); err != nil {
		t.Fatalf("BeginLoad: %v", err)
	}

	records := []struct {
		owner  string
		rrtype uint16
		ttl    uint32
		lines  []string
	}{
		{"example.com.", dns.TypeSOA, 3600, []string{
			"example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600",
		}},
		{"example.com.", dns.TypeNS, 3600, []string{
			"example.com. 3600 IN NS ns1.example.com.",
		}},
		{"www.example.com.", dns.TypeA, 300, []string{
			"www.example.com. 300 IN A 192.0.2.1",
		}},
		{"alias.example.com.", dns.TypeCNAME, 300, []string{
			"alias.example.com. 300 IN CNAME www.example.com.",
		}},
		{"sub.example.com.", dns.TypeNS, 3600, []string{
			"sub.example.com. 3600 IN NS ns1.sub.example.com.",
		}},
		{"sub.example.com.", dns.TypeDS, 3600, []string{
			"sub.example.com. 3600 IN DS 12345 8 2 49FD46E6C4B45C55D4AC069C5E8D3FACE6B6C528D29E8B2AF8EEEC9E9BADE1E4",
		}},
		{"ns1.sub.example.com.", dns.TypeA, 300, []string{
			"ns1.sub.example.com. 300 IN A 192.0.2.53",
		}},
		{"*.example.com.", dns.TypeTXT, 300, []string{
			`*.example.com. 300 IN TXT "wildcard"`,
		}},
	}

	for _, r := range records {
		rrs := make([]dns.RR, 0, len(r.lines))
		for _, l := range r.lines {
			rrs = append(rrs, mustRR(t, l))
		}
		if err := db.LoadRRset(r.owner, r.rrtype, r.ttl, rrs); err != nil {
			t.Fatalf("LoadRRset(%s %s): %v", r.owner, dns.TypeToString[r.rrtype], err)
		}
	}

	if err := db.EndLoad(); err != nil {
		t.Fatalf("EndLoad: %v", err)
	}
	return db
}
