package zonedb

import (
	"testing"

	"github.com/miekg/dns"
)

func TestActiveAtWalksDownStack(t *testing.T) {
	rr := mustRR(t, "example.com. 300 IN A 192.0.2.1")
	v1 := newHeader(typePair{rrtype: 1}, 1, []dns.RR{rr}, 300, 0)
	v2 := newHeader(typePair{rrtype: 1}, 3, []dns.RR{rr}, 300, 0)
	v2.down = v1

	found, tomb := activeAt(v2, 1)
	if found != v1 {
		t.Fatalf("activeAt(serial=1) should see v1, got %v", found)
	}
	if tomb {
		t.Fatal("v1 is not a tombstone")
	}

	found, _ = activeAt(v2, 3)
	if found != v2 {
		t.Fatalf("activeAt(serial=3) should see v2, got %v", found)
	}

	found, _ = activeAt(v2, 0)
	if found != nil {
		t.Fatalf("activeAt before any version existed should see nothing, got %v", found)
	}
}

func TestActiveAtTombstone(t *testing.T) {
	// newHeader with no rrs sets NONEXISTENT.
	tomb := newHeader(typePair{rrtype: 1}, 2, nil, 0, 0)
	found, isTomb := activeAt(tomb, 2)
	if found == nil {
		t.Fatal("a tombstone is still the 'found' header, just marked nonexistent")
	}
	if !isTomb {
		t.Fatal("expected a tombstone")
	}
}

func TestChainActiveIgnoresTombstonesAndAncient(t *testing.T) {
	a := mustRR(t, "example.com. 300 IN A 192.0.2.1")

	tomb := newHeader(typePair{rrtype: 1}, 1, nil, 300, 0)

	live := newHeader(typePair{rrtype: 2}, 1, []dns.RR{a}, 300, 0)
	tomb.next = live

	if chainActive(tomb, 1, false) != true {
		t.Fatal("chain should be active: the live header follows the tombstone")
	}

	live.attrs.set(attrAncient)
	if chainActive(tomb, 1, false) {
		t.Fatal("an ancient-only header should not count as active by default")
	}
	if !chainActive(tomb, 1, true) {
		t.Fatal("includeAncient=true should still see the ancient header")
	}
}
