package zonedb

import "testing"

func TestResignHeapOrdering(t *testing.T) {
	rh := newResignHeap()

	h1 := &Header{resign: 300}
	h2 := &Header{resign: 100}
	h3 := &Header{resign: 200}

	rh.insert(h1)
	rh.insert(h2)
	rh.insert(h3)

	if got := rh.min(); got != h2 {
		t.Fatalf("min = %+v, want h2 (resign=100)", got)
	}

	rh.remove(h2)
	if got := rh.min(); got != h3 {
		t.Fatalf("min after removing h2 = %+v, want h3 (resign=200)", got)
	}
}

func TestSoonerWraparound(t *testing.T) {
	// a's truncated clock has wrapped just past b's: a is numerically
	// smaller than b's max but represents a later instant... the RFC
	// 1982 comparison must still treat the one within half the range as
	// "sooner."
	a := &Header{resign: 10}
	b := &Header{resign: 0xFFFFFFF0}
	if !sooner(b, a) {
		t.Fatal("b (just before wraparound) should sort before a (just after)")
	}
	if sooner(a, b) {
		t.Fatal("sooner should not be symmetric-true for a wrapped pair")
	}
}

func TestSetSigningTimeMovesHeapMembership(t *testing.T) {
	rh := newResignHeap()
	h := &Header{resign: 500}
	rh.insert(h)
	h.attrs.set(attrResign)

	setSigningTime(rh, h, 100, 0)
	if rh.min() != h || h.resign != 100 {
		t.Fatalf("setSigningTime should move h to the new, sooner key")
	}

	setSigningTime(rh, h, 0, 0)
	if h.attrs.resign() {
		t.Fatal("setSigningTime(resign=0) should clear the RESIGN attribute")
	}
	if rh.min() != nil {
		t.Fatal("setSigningTime(resign=0) should remove h from the heap")
	}
}

func TestGetSigningTimeScansAllBuckets(t *testing.T) {
	db, err := New(Options{Origin: "example.com.", Buckets: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h0 := &Header{resign: 900, node: db.originNode}
	h1 := &Header{resign: 50, node: db.originNode}
	db.heaps[0].insert(h0)
	db.heaps[1].insert(h1)

	best, _ := getSigningTime(db)
	if best != h1 {
		t.Fatalf("getSigningTime should return the global minimum across buckets, got %+v", best)
	}
}
