// Package xsk wraps one AF_XDP socket's four mmapped rings (FILL, RX, TX,
// COMPLETION), the zero-copy path NFs pull packets through.
package xsk

// Socket-level constants mirrored from linux/if_xdp.h. golang.org/x/sys/unix
// does not expose these on every pinned version, so they are defined
// directly here the way the teacher's internal/uapi package hand-defines
// kernel ABI constants rather than depending on an unstable transitive one.
const (
	SOL_XDP = 283

	XDP_MMAP_OFFSETS      = 1
	XDP_RX_RING           = 2
	XDP_TX_RING           = 3
	XDP_UMEM_REG          = 4
	XDP_UMEM_FILL_RING    = 5
	XDP_UMEM_COMPLETION_RING = 6
	XDP_STATISTICS        = 7

	XDP_PGOFF_RX_RING          = 0
	XDP_PGOFF_TX_RING          = 0x80000000
	XDP_UMEM_PGOFF_FILL_RING   = 0x100000000
	XDP_UMEM_PGOFF_COMPLETION_RING = 0x180000000

	XDP_FLAGS_SKB_MODE = 1 << 1
	XDP_FLAGS_DRV_MODE = 1 << 2
	XDP_FLAGS_HW_MODE  = 1 << 3

	XDP_COPY     = 1 << 1
	XDP_ZEROCOPY = 1 << 2
	XDP_USE_NEED_WAKEUP = 1 << 3

	XDP_PKT_CONTD = 1 << 0

	SO_PREFER_BUSY_POLL = 69
	SO_BUSY_POLL        = 46
	SO_BUSY_POLL_BUDGET = 70
)

// xdpRingOffset mirrors struct xdp_ring_offset.
type xdpRingOffset struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
	Flags    uint64
}

// xdpMmapOffsets mirrors struct xdp_mmap_offsets, the layout returned by
// getsockopt(fd, SOL_XDP, XDP_MMAP_OFFSETS).
type xdpMmapOffsets struct {
	RX xdpRingOffset
	TX xdpRingOffset
	FR xdpRingOffset
	CR xdpRingOffset
}
