package extid

import "strconv"

// DedupTracker assigns _N suffixes (N >= 2) to repeated ID bases in
// first-come-first-served order. One tracker lives for exactly one model's
// emit pass; the orchestrator resets it between models so the same base in
// two models never collides.
type DedupTracker struct {
	seen   map[string]bool
	counts map[string]int
}

func NewDedupTracker() *DedupTracker {
	return &DedupTracker{
		seen:   make(map[string]bool),
		counts: make(map[string]int),
	}
}

// Track records a base ID and returns the ID to emit. The first occurrence
// passes through unsuffixed; later occurrences get _2, _3, ...
func (d *DedupTracker) Track(base string) (id string, dup bool) {
	if !d.seen[base] {
		d.seen[base] = true
		d.counts[base] = 1
		return base, false
	}
	d.counts[base]++
	return base + "_" + strconv.Itoa(d.counts[base]), true
}

// Reset clears all tracked state.
func (d *DedupTracker) Reset() {
	d.seen = make(map[string]bool)
	d.counts = make(map[string]int)
}
