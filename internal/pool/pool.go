// Package pool implements the per-thread frame free list that hands out
// UMEM-relative frame offsets to a worker thread's FILL ring and reclaims
// them once a packet has been sent or dropped.
//
// Each worker thread owns a disjoint slice of the UMEM's frame space, sized
// 2*XSK_RING_PROD__DEFAULT_NUM_DESCS frames by default (matching
// flash_pool__create's nr_frames computation), so no cross-thread locking
// is needed: a pool is only ever touched by the single goroutine that owns
// the thread it belongs to.
package pool

import "github.com/flashgo/flashgo/internal/constants"

// FramePool is a fixed-capacity ring-backed free list of frame offsets.
type FramePool struct {
	mask uint32
	desc []uint64
	head uint32
	tail uint32
}

// New creates a pool sized to hold nrFrames offsets (rounded up to the next
// power of two) and pre-populates it with the frame range
// [threadOffset*nrFrames, (threadOffset+1)*nrFrames), each entry scaled by
// frameSize — the same assignment flash_pool__create uses to partition one
// UMEM's frame space across threads.
func New(frameSize int, threadOffset, nrFrames int) *FramePool {
	if nrFrames <= 0 {
		nrFrames = constants.FramePoolSize
	}
	size := nextPow2(uint32(nrFrames))
	p := &FramePool{
		mask: size - 1,
		desc: make([]uint64, size),
	}
	base := uint64(threadOffset) * uint64(nrFrames)
	for i := uint64(0); i < uint64(nrFrames); i++ {
		p.desc[p.tail&p.mask] = (base + i) * uint64(frameSize)
		p.tail++
	}
	return p
}

func nextPow2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// Get removes and returns a free frame offset. Returns false if the pool
// is exhausted.
func (p *FramePool) Get() (uint64, bool) {
	if p.head == p.tail {
		return 0, false
	}
	d := p.desc[p.head&p.mask]
	p.head++
	return d, true
}

// Put returns a frame offset to the pool. Returns false if the pool is
// already full, which indicates a double-release bug upstream.
func (p *FramePool) Put(offset uint64) bool {
	if p.tail-p.head >= uint32(len(p.desc)) {
		return false
	}
	p.desc[p.tail&p.mask] = offset
	p.tail++
	return true
}

// Len returns the number of frames currently available.
func (p *FramePool) Len() uint32 {
	return p.tail - p.head
}

// Cap returns the pool's fixed capacity.
func (p *FramePool) Cap() uint32 {
	return uint32(len(p.desc))
}
