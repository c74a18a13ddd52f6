package xsk

import (
	"sync/atomic"
	"unsafe"
)

// fillRing is the producer ring of frame offsets the kernel drains to
// replenish RX. compRing is its consumer counterpart for completed TX
// frames. Both carry raw uint64 UMEM offsets, not Descriptors.
type fillRing struct {
	mask       uint32
	size       uint32
	producer   *uint32
	consumer   *uint32
	ring       []uint64
	cachedProd uint32
	cachedCons uint32
}

func (r *fillRing) freeEntries(nb uint32) uint32 {
	free := r.cachedCons - r.cachedProd
	if free >= nb {
		return free
	}
	r.cachedCons = atomic.LoadUint32(r.consumer) + r.size
	return r.cachedCons - r.cachedProd
}

// Reserve claims exactly nb slots or none: it returns nb, or 0 when fewer than nb are free.
func (r *fillRing) Reserve(nb uint32) (idx uint32, n uint32) {
	if r.freeEntries(nb) < nb {
		return 0, 0
	}
	idx = r.cachedProd
	r.cachedProd += nb
	return idx, nb
}

// Set writes offset at the slot reserved at idx+i.
func (r *fillRing) Set(idx uint32, offset uint64) {
	r.ring[idx&r.mask] = offset
}

// Submit publishes nb previously reserved slots to the kernel.
func (r *fillRing) Submit(nb uint32) {
	atomic.StoreUint32(r.producer, *r.producer+nb)
}

type compRing struct {
	mask       uint32
	size       uint32
	producer   *uint32
	consumer   *uint32
	ring       []uint64
	cachedProd uint32
	cachedCons uint32
}

// Peek returns the index of the first available entry and how many are
// available, capped at nb. The entries are not removed until Release.
func (r *compRing) Peek(nb uint32) (idx uint32, n uint32) {
	entries := r.cachedProd - r.cachedCons
	if entries == 0 {
		r.cachedProd = atomic.LoadUint32(r.producer)
		entries = r.cachedProd - r.cachedCons
	}
	if nb > entries {
		nb = entries
	}
	idx = r.cachedCons
	r.cachedCons += nb
	return idx, nb
}

func (r *compRing) Get(idx uint32) uint64 {
	return r.ring[idx&r.mask]
}

func (r *compRing) Release(nb uint32) {
	atomic.StoreUint32(r.consumer, *r.consumer+nb)
}

// rxRing is the consumer ring of received descriptors.
type rxRing struct {
	mask       uint32
	size       uint32
	producer   *uint32
	consumer   *uint32
	ring       []Descriptor
	cachedProd uint32
	cachedCons uint32
}

func (r *rxRing) Peek(nb uint32) (idx uint32, n uint32) {
	entries := r.cachedProd - r.cachedCons
	if entries == 0 {
		r.cachedProd = atomic.LoadUint32(r.producer)
		entries = r.cachedProd - r.cachedCons
	}
	if nb > entries {
		nb = entries
	}
	idx = r.cachedCons
	r.cachedCons += nb
	return idx, nb
}

func (r *rxRing) Get(idx uint32) *Descriptor {
	return &r.ring[idx&r.mask]
}

func (r *rxRing) Release(nb uint32) {
	atomic.StoreUint32(r.consumer, *r.consumer+nb)
}

// txRing is the producer ring of descriptors to transmit.
type txRing struct {
	mask       uint32
	size       uint32
	producer   *uint32
	consumer   *uint32
	ring       []Descriptor
	cachedProd uint32
	cachedCons uint32
}

func (r *txRing) freeEntries(nb uint32) uint32 {
	free := r.cachedCons - r.cachedProd
	if free >= nb {
		return free
	}
	r.cachedCons = atomic.LoadUint32(r.consumer) + r.size
	return r.cachedCons - r.cachedProd
}

func (r *txRing) Reserve(nb uint32) (idx uint32, n uint32) {
	if r.freeEntries(nb) < nb {
		return 0, 0
	}
	idx = r.cachedProd
	r.cachedProd += nb
	return idx, nb
}

func (r *txRing) Get(idx uint32) *Descriptor {
	return &r.ring[idx&r.mask]
}

func (r *txRing) Submit(nb uint32) {
	atomic.StoreUint32(r.producer, *r.producer+nb)
}

// ringPointers slices a producer/consumer/flags/desc quadruple out of one
// mmapped region at the given xdp_ring_offset, matching xsk_mmap_umem_rings.
func ringPointers(base unsafe.Pointer, off xdpRingOffset) (producer, consumer *uint32, descBase unsafe.Pointer) {
	producer = (*uint32)(unsafe.Pointer(uintptr(base) + uintptr(off.Producer)))
	consumer = (*uint32)(unsafe.Pointer(uintptr(base) + uintptr(off.Consumer)))
	descBase = unsafe.Pointer(uintptr(base) + uintptr(off.Desc))
	return
}
