package zonedb

import (
	"container/heap"
	"sync"
)

// heapPos captures enough of a header's resign heap state to restore it
// on a version rollback.
type heapPos struct {
	inHeap    bool
	index     int
	resign    uint32
	resignLSB uint8
}

// sooner reports whether a's (resign, resign_lsb) key sorts before b's,
// using serial-number (RFC 1982) comparison on the truncated 31-bit
// clock so a wraparound of the truncated time does not misorder entries
// -- spec section 4.3's sooner(a,b), whose wraparound handling spec.md
// names but does not spell out; ported from the comparison the resign
// field's own truncation scheme implies (a 31-bit clock must be compared
// the same way DNS SOA serials are).
func sooner(a, b *Header) bool {
	if a.resign != b.resign {
		diff := (a.resign - b.resign) & 0x7FFFFFFF
		return diff > 1<<30
	}
	return a.resignLSB < b.resignLSB
}

// resignHeap is the per-lock-bucket min-heap of headers with the RESIGN
// attribute set, ordered by sooner() (spec section 4.3). It is guarded
// by its own mu, not by the node bucket lock: reads take the read lock,
// every mutation takes the write lock.
type resignHeap struct {
	mu   sync.RWMutex
	heap resignHeapImpl
}

func newResignHeap() *resignHeap {
	return &resignHeap{}
}

type resignHeapImpl []*Header

func (h resignHeapImpl) Len() int { return len(h) }
func (h resignHeapImpl) Less(i, j int) bool {
	return sooner(h[i], h[j])
}
func (h resignHeapImpl) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i + 1
	h[j].heapIndex = j + 1
}
func (h *resignHeapImpl) Push(x any) {
	hdr := x.(*Header)
	hdr.heapIndex = len(*h) + 1
	*h = append(*h, hdr)
}
func (h *resignHeapImpl) Pop() any {
	old := *h
	n := len(old)
	hdr := old[n-1]
	old[n-1] = nil
	hdr.heapIndex = 0
	*h = old[:n-1]
	return hdr
}

// insert adds hdr to the heap. Caller must hold no lock; insert takes
// the write lock itself.
func (rh *resignHeap) insert(hdr *Header) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	heap.Push(&rh.heap, hdr)
}

func (rh *resignHeap) remove(hdr *Header) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	if hdr.heapIndex == 0 {
		return
	}
	heap.Remove(&rh.heap, hdr.heapIndex-1)
}

// increased re-establishes the heap invariant after hdr's key became
// "later" (a bigger key moves down the min-heap).
func (rh *resignHeap) increased(hdr *Header) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	if hdr.heapIndex == 0 {
		return
	}
	heap.Fix(&rh.heap, hdr.heapIndex-1)
}

// decreased re-establishes the heap invariant after hdr's key became
// "sooner" (a smaller key moves up the min-heap). container/heap's Fix
// handles both directions, but setsigningtime must still choose which
// one occurred the way spec section 4.3 requires, because a future
// implementation swapping in a heap without Fix's "either direction"
// guarantee must call the matching primitive.
func (rh *resignHeap) decreased(hdr *Header) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	if hdr.heapIndex == 0 {
		return
	}
	heap.Fix(&rh.heap, hdr.heapIndex-1)
}

// min returns the heap's minimum header without removing it.
func (rh *resignHeap) min() *Header {
	rh.mu.RLock()
	defer rh.mu.RUnlock()
	if len(rh.heap) == 0 {
		return nil
	}
	return rh.heap[0]
}

// setSigningTime implements spec section 4.3's setsigningtime: update
// (resign, resign_lsb) and move hdr's heap membership/position to match.
func setSigningTime(rh *resignHeap, hdr *Header, resign uint32, resignLSB uint8) {
	if resign == 0 {
		if hdr.attrs.resign() {
			rh.remove(hdr)
			hdr.attrs.clear(attrResign)
		}
		hdr.resign, hdr.resignLSB = 0, 0
		return
	}

	wasInHeap := hdr.heapIndex != 0
	old := *hdr
	hdr.resign, hdr.resignLSB = resign, resignLSB

	switch {
	case !wasInHeap:
		hdr.attrs.set(attrResign)
		rh.insert(hdr)
	case sooner(hdr, &old):
		rh.decreased(hdr)
	default:
		rh.increased(hdr)
	}
}

// getSigningTime scans every bucket's heap for the overall minimum
// RESIGN header, retaining the read lock on whichever bucket currently
// holds the minimum and releasing it as a new minimum is discovered
// (spec section 4.3). It returns the winning header and its owner node,
// or (nil, nil) if nothing has RESIGN set.
func getSigningTime(db *DB) (*Header, *node) {
	var best *Header
	var bestNode *node
	var heldBucket *resignHeap

	release := func() {
		if heldBucket != nil {
			heldBucket.mu.RUnlock()
			heldBucket = nil
		}
	}
	defer release()

	for _, rh := range db.heaps {
		rh.mu.RLock()
		if len(rh.heap) == 0 {
			rh.mu.RUnlock()
			continue
		}
		cand := rh.heap[0]
		if best == nil || sooner(cand, best) {
			release()
			best = cand
			bestNode = cand.node
			heldBucket = rh
			// keep rh's read lock held; it guards `best` until a
			// strictly sooner candidate is found or the scan ends.
			continue
		}
		rh.mu.RUnlock()
	}
	return best, bestNode
}
