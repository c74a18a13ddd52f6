package xsk

import "unsafe"

// Descriptor is the wire-identical layout of struct xdp_desc: a frame's
// UMEM-relative address, payload length, and option bits. Bit 0 of Options
// is the kernel's XDP_PKT_CONTD bit: IsEOP reports true when the bit is
// clear, i.e. no more fragments follow.
type Descriptor struct {
	Addr    uint64
	Len     uint32
	Options uint32
}

var _ [16]byte = [unsafe.Sizeof(Descriptor{})]byte{}

// IsEOP reports whether this descriptor ends a packet (no XDP_PKT_CONTD bit set).
func (d *Descriptor) IsEOP() bool {
	return d.Options&XDP_PKT_CONTD == 0
}

// SetContinued marks the descriptor as having more fragments following.
func (d *Descriptor) SetContinued() {
	d.Options |= XDP_PKT_CONTD
}
