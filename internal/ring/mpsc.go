package ring

import (
	"runtime"
	"sync/atomic"
)

// MPSC is a multi-producer single-consumer ring: several goroutines may
// enqueue concurrently while one goroutine drains it. No other package in
// this module uses it.
//
// Producers reserve a slot with a CAS loop on producerHead, write their
// value, then spin until prodPos catches up to their reserved position
// before publishing it — the same commit-after-reservation discipline an
// AF_XDP multi-socket UMEM fill ring uses when more than one socket shares
// a single fill ring.
type MPSC[T any] struct {
	mask         uint32
	slots        []T
	producerHead atomic.Uint32 // next position to hand out to a producer
	prodPos      atomic.Uint32 // highest position fully committed
	consPos      atomic.Uint32
}

// NewMPSC creates a ring of the given capacity, which must be a power of two.
func NewMPSC[T any](capacity uint32) *MPSC[T] {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &MPSC[T]{
		mask:  capacity - 1,
		slots: make([]T, capacity),
	}
}

func (r *MPSC[T]) Cap() uint32 { return r.mask + 1 }

func (r *MPSC[T]) Len() uint32 {
	return r.prodPos.Load() - r.consPos.Load()
}

// TryPush reserves a slot via CAS, writes v, then waits for prior
// reservations to commit before publishing its own position. Returns
// false without blocking if the ring was full at reservation time.
func (r *MPSC[T]) TryPush(v T) bool {
	for {
		head := r.producerHead.Load()
		cons := r.consPos.Load()
		if head-cons >= r.Cap() {
			return false
		}
		if r.producerHead.CompareAndSwap(head, head+1) {
			r.slots[head&r.mask] = v
			// Commit in order: wait until our predecessor's write has published.
			for !r.prodPos.CompareAndSwap(head, head+1) {
				runtime.Gosched()
			}
			return true
		}
	}
}

// TryPop removes and returns the oldest committed item.
func (r *MPSC[T]) TryPop() (T, bool) {
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
