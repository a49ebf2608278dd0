// Package ring implements a bounded, lock-free, single-producer/single-consumer
// queue of fixed-size value records. It is the stitching primitive between
// the pipeline's stages: zero heap traffic in steady state, no locks, no
// spurious failures.
//
// Contract: at most one goroutine calls TryWrite, at most one goroutine
// calls TryRead. Violating that is undefined behavior by construction — the
// buffer does nothing to detect or prevent a second writer or reader.
package ring

import (
	"fmt"
	"sync/atomic"
)

// cacheLinePad is sized so that no two of the four hot counters below ever
// share a 64-byte cache line, regardless of how the Go runtime happens to
// lay out the surrounding struct fields.
type cacheLinePad [64]byte

// Buffer is a bounded SPSC ring buffer of T. Capacity must be a power of
// two; use New to construct one.
type Buffer[T any] struct {
	slots []T
	mask  uint64

	_ cacheLinePad

	// writePos is owned by the producer; read by the consumer via an
	// acquire load.
	writePos atomic.Uint64

	_ cacheLinePad

	// readPos is owned by the consumer; read by the producer via an
	// acquire load.
	readPos atomic.Uint64

	_ cacheLinePad

	// cachedReadPos is the producer's private, unsynchronized copy of
	// readPos, refreshed only when the buffer appears full.
	cachedReadPos uint64

	_ cacheLinePad

	// cachedWritePos is the consumer's private, unsynchronized copy of
	// writePos, refreshed only when the buffer appears empty.
	cachedWritePos uint64
}

// ErrInvalidCapacity is returned by New when capacity is not a positive
// power of two.
var ErrInvalidCapacity = fmt.Errorf("ring: capacity must be a positive power of two")

// New constructs a Buffer with room for capacity elements. capacity must be
// a positive power of two.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, ErrInvalidCapacity
	}
	return &Buffer[T]{
		slots: make([]T, capacity),
		mask:  uint64(capacity - 1),
	}, nil
}

// TryWrite attempts to enqueue value. It returns false iff the buffer is
// genuinely full; it never fails spuriously. Producer-only.
func (b *Buffer[T]) TryWrite(value T) bool {
	w := b.writePos.Load()
	if w+1-b.cachedReadPos > uint64(len(b.slots)) {
		b.cachedReadPos = b.readPos.Load()
		if w+1-b.cachedReadPos > uint64(len(b.slots)) {
			return false
		}
	}
	b.slots[w&b.mask] = value
	b.writePos.Store(w + 1)
	return true
}

// TryRead attempts to dequeue a value. ok is false iff the buffer is
// genuinely empty; it never fails spuriously. Consumer-only.
func (b *Buffer[T]) TryRead() (value T, ok bool) {
	r := b.readPos.Load()
	if r >= b.cachedWritePos {
		b.cachedWritePos = b.writePos.Load()
		if r >= b.cachedWritePos {
			return value, false
		}
	}
	value = b.slots[r&b.mask]
	b.readPos.Store(r + 1)
	return value, true
}

// AvailableToRead returns a point-in-time estimate of the number of
// elements waiting to be read. Safe to call from either side; the value may
// be stale the instant it's returned.
func (b *Buffer[T]) AvailableToRead() int {
	w := b.writePos.Load()
	r := b.readPos.Load()
	return int(w - r)
}

// AvailableToWrite returns a point-in-time estimate of free slots.
func (b *Buffer[T]) AvailableToWrite() int {
	return len(b.slots) - b.AvailableToRead()
}

// IsEmpty reports whether the buffer currently holds no elements. Stale the
// instant it returns, same as AvailableToRead.
func (b *Buffer[T]) IsEmpty() bool {
	return b.writePos.Load() == b.readPos.Load()
}

// IsFull reports whether the buffer currently has no free slots.
func (b *Buffer[T]) IsFull() bool {
	return b.AvailableToRead() >= len(b.slots)
}

// Capacity returns the number of slots the buffer was constructed with.
func (b *Buffer[T]) Capacity() int {
	return len(b.slots)
}

// Reset rewinds both cursors to zero. Defined only when no producer or
// consumer is concurrently using the buffer.
func (b *Buffer[T]) Reset() {
	b.writePos.Store(0)
	b.readPos.Store(0)
	b.cachedReadPos = 0
	b.cachedWritePos = 0
}
