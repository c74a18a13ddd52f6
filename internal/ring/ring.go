// Package ring implements generic lock-free descriptor rings for handing
// values between goroutines. No other package in this module imports it.
//
// Both ring variants use monotonically increasing uint32 producer/consumer
// counters and a power-of-two sized slot array, the same discipline AF_XDP
// itself uses for its FILL/RX/TX/COMPLETION rings: the slot index is always
// pos & (size-1), and wraparound is implicit in the counter arithmetic.
package ring

import (
	"sync/atomic"
)

// SPSC is a single-producer single-consumer ring. The producer must only
// ever be called from one goroutine, likewise the consumer; no locking is
// needed between them because the acquire/release pair on prodPos/consPos
// is sufficient to publish writes to the slot array.
type SPSC[T any] struct {
	mask     uint32
	slots    []T
	prodPos  atomic.Uint32 // next free write position
	consPos  atomic.Uint32 // next unread position
}

// NewSPSC creates a ring of the given capacity, which must be a power of two.
func NewSPSC[T any](capacity uint32) *SPSC[T] {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &SPSC[T]{
		mask:  capacity - 1,
		slots: make([]T, capacity),
	}
}

// Cap returns the ring's fixed capacity.
func (r *SPSC[T]) Cap() uint32 { return r.mask + 1 }

// Len returns the number of items currently queued.
func (r *SPSC[T]) Len() uint32 {
	return r.prodPos.Load() - r.consPos.Load()
}

// TryPush inserts v if the ring isn't full. Returns false without
// modifying the ring when full.
func (r *SPSC[T]) TryPush(v T) bool {
	prod := r.prodPos.Load()
	cons := r.consPos.Load()
	if prod-cons >= r.Cap() {
		return false
	}
	r.slots[prod&r.mask] = v
	r.prodPos.Store(prod + 1)
	return true
}

// TryPop removes and returns the oldest item. Returns false, zero value
// when the ring is empty.
func (r *SPSC[T]) TryPop() (T, bool) {
	var zero T
	cons := r.consPos.Load()
	prod := r.prodPos.Load()
	if cons == prod {
		return zero, false
	}
	v := r.slots[cons&r.mask]
	r.consPos.Store(cons + 1)
	return v, true
}

// Peek returns up to n unread items without removing them from the ring.
// The caller must call Release with however many of the returned items it
// actually consumed.
func (r *SPSC[T]) Peek(n uint32) []T {
	cons := r.consPos.Load()
	prod := r.prodPos.Load()
	avail := prod - cons
	if n > avail {
		n = avail
	}
	out := make([]T, n)
	for i := uint32(0); i < n; i++ {
		out[i] = r.slots[(cons+i)&r.mask]
	}
	return out
}

// Release advances the consumer position by n, making room for the
// producer to reuse those slots. n must not exceed the number of items
// returned by the most recent Peek that have not yet been released.
func (r *SPSC[T]) Release(n uint32) {
	r.consPos.Store(r.consPos.Load() + n)
}

// Reserve claims n free slots for the producer to fill via At, returning
// the base position to pass to At and false if fewer than n slots are free.
func (r *SPSC[T]) Reserve(n uint32) (base uint32, ok bool) {
	prod := r.prodPos.Load()
	cons := r.consPos.Load()
	if r.Cap()-(prod-cons) < n {
		return 0, false
	}
	return prod, true
}

// At returns a pointer to the slot at the given reserved position, letting
// the caller fill it in place before Submit.
func (r *SPSC[T]) At(pos uint32) *T {
	return &r.slots[pos&r.mask]
}

// Submit publishes n previously-reserved slots starting at base to the consumer.
func (r *SPSC[T]) Submit(base, n uint32) {
	r.prodPos.Store(base + n)
}
