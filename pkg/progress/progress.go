// Package progress carries coarse (value, max) progress updates out of
// the indexing pass. The sink is the seam to the host's event bus; a nil
// sink is always a no-op, never an error.
package progress

// Sink accepts one progress update. Implementations must tolerate being
// called from a single goroutine at a time but across phases.
type Sink func(value, max int)

// Nop discards every update.
func Nop() Sink {
	return func(int, int) {}
}

// Reporter counts the two-phase indexing pass over a fixed item total:
// the load phase walks items 1..N of 2N, the embed phase advances
// N+1..2N by batch. Construction with a nil sink yields a silent
// reporter.
type Reporter struct {
	sink  Sink
	items int
}

// NewReporter sizes a reporter for items entries per phase.
func NewReporter(sink Sink, items int) *Reporter {
	return &Reporter{sink: sink, items: items}
}

// Loaded records that item i (zero-based) finished loading. Updates are
// emitted every tenth item and on the final one to keep the bus quiet.
func (r *Reporter) Loaded(i int) {
	if r.sink == nil || r.items == 0 {
		return
	}
	if i%10 == 0 || i == r.items-1 {
		r.sink(i+1, r.items*2)
	}
}

// EmbeddedBatch records that batch batchIdx (zero-based) of numBatches
// finished embedding, scaling batch completion onto the second half of
// the item range.
func (r *Reporter) EmbeddedBatch(batchIdx, numBatches int) {
	if r.sink == nil || r.items == 0 || numBatches <= 0 {
		return
	}
	value := r.items + int(float64(batchIdx+1)/float64(numBatches)*float64(r.items))
	r.sink(value, r.items*2)
}
