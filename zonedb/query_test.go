package zonedb

import (
	"testing"

	"github.com/miekg/dns"
)

func TestFindExactMatch(t *testing.T) {
	db := buildTestZone(t)

	res, _, found, _, name := db.Find("www.example.com.", nil, dns.TypeA, FindOptions{})
	if res != ResultSuccess {
		t.Fatalf("result = %v, want success", res)
	}
	if name != "www.example.com." {
		t.Fatalf("found name = %q", name)
	}
	if len(found.RRs()) != 1 {
		t.Fatalf("rrset length = %d, want 1", len(found.RRs()))
	}
}

func TestFindCNAME(t *testing.T) {
	db := buildTestZone(t)

	res, _, found, _, _ := db.Find("alias.example.com.", nil, dns.TypeA, FindOptions{})
	if res != ResultCNAME {
		t.Fatalf("result = %v, want cname", res)
	}
	cn, ok := found.RRs()[0].(*dns.CNAME)
	if !ok || cn.Target != "www.example.com." {
		t.Fatalf("CNAME target = %v", found.RRs()[0])
	}
}

func TestFindDelegation(t *testing.T) {
	db := buildTestZone(t)

	res, n, found, _, name := db.Find("host.sub.example.com.", nil, dns.TypeA, FindOptions{})
	if res != ResultDelegation {
		t.Fatalf("result = %v, want delegation", res)
	}
	if name != "sub.example.com." {
		t.Fatalf("delegation owner = %q", name)
	}
	if n == nil {
		t.Fatal("expected a zonecut node")
	}
	if found == nil || found.RRs()[0].Header().Rrtype != dns.TypeNS {
		t.Fatal("expected an NS rdataset at the delegation point")
	}
}

func TestFindGlueOKCrossesCut(t *testing.T) {
	db := buildTestZone(t)

	res, _, found, _, _ := db.Find("ns1.sub.example.com.", nil, dns.TypeA, FindOptions{GlueOK: true})
	if res != ResultGlue {
		t.Fatalf("result = %v, want glue (GLUEOK should cross the cut)", res)
	}
	if found == nil || len(found.RRs()) != 1 {
		t.Fatal("expected the glue A record")
	}
}

func TestFindDSAtDelegationAnsweredLocally(t *testing.T) {
	db := buildTestZone(t)

	res, n, found, _, name := db.Find("sub.example.com.", nil, dns.TypeDS, FindOptions{})
	if res != ResultSuccess {
		t.Fatalf("result = %v, want success (DS lives at the parent side of a cut)", res)
	}
	if name != "sub.example.com." || n == nil {
		t.Fatalf("unexpected match: name=%q n=%v", name, n)
	}
	if found == nil || found.RRs()[0].Header().Rrtype != dns.TypeDS {
		t.Fatal("expected the DS rdataset")
	}
}

func TestFindANYAtDelegationIsZonecut(t *testing.T) {
	db := buildTestZone(t)

	res, _, _, _, _ := db.Find("sub.example.com.", nil, dns.TypeANY, FindOptions{GlueOK: true})
	if res != ResultZonecut {
		t.Fatalf("result = %v, want zonecut", res)
	}
}

func TestFindGlueOKAtCutOwnerNonParentTypeIsGlue(t *testing.T) {
	db := buildTestZone(t)

	// Asking the cut owner for a type that is neither ANY nor a
	// parent-side type (here MX) with GLUEOK is glue rather than an
	// ordinary delegation answer.
	res, _, _, _, _ := db.Find("sub.example.com.", nil, dns.TypeMX, FindOptions{GlueOK: true})
	if res != ResultGlue {
		t.Fatalf("result = %v, want glue", res)
	}
}

func TestAddGlueAttachesInBailiwickAddress(t *testing.T) {
	db := buildTestZone(t)

	_, _, nsHeader, _, owner := db.Find("host.sub.example.com.", nil, dns.TypeA, FindOptions{})
	if nsHeader == nil {
		t.Fatal("setup: expected an NS header at the delegation")
	}

	v := db.CurrentVersion()
	defer v.release()

	msg := new(dns.Msg)
	if err := db.AddGlue(v, nsHeader, owner, msg); err != nil {
		t.Fatalf("AddGlue: %v", err)
	}
	if len(msg.Extra) != 1 {
		t.Fatalf("Extra = %v, want one glue A record", msg.Extra)
	}
	if a, ok := msg.Extra[0].(*dns.A); !ok || a.Hdr.Name != "ns1.sub.example.com." {
		t.Fatalf("unexpected glue record: %v", msg.Extra[0])
	}

	// second call should hit the cache rather than recompute.
	hitsBefore, missesBefore := db.GlueCacheStats()
	msg2 := new(dns.Msg)
	if err := db.AddGlue(v, nsHeader, owner, msg2); err != nil {
		t.Fatalf("AddGlue (cached): %v", err)
	}
	hitsAfter, missesAfter := db.GlueCacheStats()
	if hitsAfter != hitsBefore+1 || missesAfter != missesBefore {
		t.Fatalf("glue cache stats didn't register a hit: before=(%d,%d) after=(%d,%d)",
			hitsBefore, missesBefore, hitsAfter, missesAfter)
	}
}

func TestFindWildcard(t *testing.T) {
	db := buildTestZone(t)

	res, _, found, _, name := db.Find("anything.example.com.", nil, dns.TypeTXT, FindOptions{})
	if res != ResultSuccess {
		t.Fatalf("result = %v, want success via wildcard", res)
	}
	if name != "anything.example.com." {
		t.Fatalf("found name should be the queried name, got %q", name)
	}
	txt, ok := found.RRs()[0].(*dns.TXT)
	if !ok || txt.Txt[0] != "wildcard" {
		t.Fatalf("unexpected wildcard rrset: %v", found.RRs()[0])
	}
}

func TestFindWildcardBlockedByMoreSpecificName(t *testing.T) {
	db := buildTestZone(t)

	// www.example.com. exists with an A record but no TXT: this must
	// NOT fall through to the wildcard (RFC 4592): a more specific
	// owner blocks wildcard synthesis even when it lacks the queried
	// type.
	res, _, _, _, _ := db.Find("www.example.com.", nil, dns.TypeTXT, FindOptions{})
	if res != ResultNXRRset {
		t.Fatalf("result = %v, want nxrrset (wildcard must not apply to an existing owner)", res)
	}
}

func TestFindWildcardOwnerLacksQueriedType(t *testing.T) {
	db := buildTestZone(t)

	// nonexistent.example.com.'s parent is the apex, which does carry
	// a wildcard (for TXT) -- so an A query there still resolves via
	// wildcard synthesis, just with no data for A specifically.
	res, _, _, _, _ := db.Find("nonexistent.example.com.", nil, dns.TypeA, FindOptions{})
	if res != ResultEmptyWild {
		t.Fatalf("result = %v, want emptywild (wildcard owner exists but not for A)", res)
	}
}

func TestFindNXRRsetBindsNSECInSecureZone(t *testing.T) {
	db, err := New(Options{Origin: "example.com."})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.BeginLoad(); err != nil {
		t.Fatalf("BeginLoad: %v", err)
	}
	soa := mustRR(t, "example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600")
	if err := db.LoadRRset("example.com.", dns.TypeSOA, 3600, []dns.RR{soa}); err != nil {
		t.Fatalf("load SOA: %v", err)
	}
	key := mustRR(t, "example.com. 3600 IN DNSKEY 256 3 8 AwEAAddt2AkLseR7Yg")
	if err := db.LoadRRset("example.com.", dns.TypeDNSKEY, 3600, []dns.RR{key}); err != nil {
		t.Fatalf("load DNSKEY: %v", err)
	}
	a := mustRR(t, "www.example.com. 300 IN A 192.0.2.1")
	if err := db.LoadRRset("www.example.com.", dns.TypeA, 300, []dns.RR{a}); err != nil {
		t.Fatalf("load www A: %v", err)
	}
	nsec := mustRR(t, "www.example.com. 300 IN NSEC example.com. A RRSIG NSEC")
	if err := db.LoadRRset("www.example.com.", dns.TypeNSEC, 300, []dns.RR{nsec}); err != nil {
		t.Fatalf("load www NSEC: %v", err)
	}
	sig := mustRR(t, "www.example.com. 300 IN RRSIG NSEC 8 3 300 20300101000000 20260101000000 12345 example.com. AwEAAddt2AkLseR7Yg==")
	if err := db.LoadRRset("www.example.com.", dns.TypeRRSIG, 300, []dns.RR{sig}); err != nil {
		t.Fatalf("load www RRSIG(NSEC): %v", err)
	}
	if err := db.EndLoad(); err != nil {
		t.Fatalf("EndLoad: %v", err)
	}

	res, _, found, rrsig, _ := db.Find("www.example.com.", nil, dns.TypeAAAA, FindOptions{})
	if res != ResultNXRRset {
		t.Fatalf("result = %v, want nxrrset", res)
	}
	if found == nil || found.RRs()[0].Header().Rrtype != dns.TypeNSEC {
		t.Fatal("expected the owner's NSEC bound into the nxrrset response")
	}
	if rrsig == nil || rrsig.RRs()[0].Header().Rrtype != dns.TypeRRSIG {
		t.Fatal("expected RRSIG(NSEC) bound alongside it")
	}
}

func TestFindNXDomainNoWildcardInPath(t *testing.T) {
	db := buildTestZone(t)

	// A name under the delegated subdomain that isn't ns1: nothing
	// below sub.example.com. is held in this zone's own data once
	// delegated, but the direct query (bypassing the cut with GLUEOK)
	// should report nxdomain rather than success.
	res, _, _, _, _ := db.Find("ghost.sub.example.com.", nil, dns.TypeA, FindOptions{GlueOK: true})
	if res != ResultNXDomain {
		t.Fatalf("result = %v, want nxdomain", res)
	}
}
