// Package batch groups canonical records into fixed-size batches so the
// external aligner is invoked a bounded number of times.
package batch

import "govizu-core/record"

// Batch is an ordered group of records aligned together. Alignment
// coordinates are batch-global, so a batch either succeeds or fails whole.
type Batch []record.Canonical

// Batcher buffers records until a full batch is ready. It holds at most one
// partial batch; input order is preserved within and across batches.
type Batcher struct {
	size int
	buf  Batch
}

// New returns a Batcher emitting batches of size records. Sizes below 1 are
// clamped to 1.
func New(size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{size: size, buf: make(Batch, 0, size)}
}

// Add appends r to the current batch and returns it when full. The returned
// batch is exclusively owned by the caller.
func (b *Batcher) Add(r record.Canonical) (Batch, bool) {
	b.buf = append(b.buf, r)
	if len(b.buf) < b.size {
		return nil, false
	}
	out := b.buf
	b.buf = make(Batch, 0, b.size)
	return out, true
}

// Flush returns the trailing partial batch, or nil if none is pending.
func (b *Batcher) Flush() Batch {
	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = make(Batch, 0, b.size)
	return out
}
