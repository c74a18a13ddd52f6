package xsk

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SocketConfig carries the per-socket bind parameters taken from a
// topology's umem entry, matching struct xsk_config in flash_defines.h.
type SocketConfig struct {
	FillSize   uint32
	CompSize   uint32
	RXSize     uint32
	TXSize     uint32
	BindFlags  uint32
	NeedWakeup bool
	BusyPoll   bool
}

// Socket wraps one AF_XDP socket's mmapped rings. The first socket on a UMEM
// owns the FILL/COMPLETION rings outright; subsequent sockets sharing a UMEM
// still get their own private mmap per flash_nf.c's per-thread
// xsk_mmap_umem_rings call, so Socket always owns all four rings here —
// sharing happens at the UMEM/frame-pool level, not the ring mmap level.
type Socket struct {
	FD int

	fill fillRing
	comp compRing
	rx   rxRing
	tx   txRing

	fillMap, compMap, rxMap, txMap []byte

	outstandingTX uint32
	cfg           SocketConfig
}

// Bind mmaps the four rings for an already-created AF_XDP socket fd,
// following xsk_mmap_umem_rings: getsockopt(SOL_XDP, XDP_MMAP_OFFSETS)
// then four mmap calls at the fixed pgoff constants.
func Bind(fd int, cfg SocketConfig) (*Socket, error) {
	off, err := getMmapOffsets(fd)
	if err != nil {
		return nil, fmt.Errorf("getsockopt(XDP_MMAP_OFFSETS): %w", err)
	}

	s := &Socket{FD: fd, cfg: cfg}

	fillMap, err := unix.Mmap(fd, XDP_UMEM_PGOFF_FILL_RING,
		int(off.FR.Desc+uint64(cfg.FillSize)*8), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("mmap fill ring: %w", err)
	}
	s.fillMap = fillMap
	prod, cons, descBase := ringPointers(unsafe.Pointer(&fillMap[0]), off.FR)
	s.fill = fillRing{
		mask: cfg.FillSize - 1, size: cfg.FillSize,
		producer: prod, consumer: cons,
		ring:       unsafe.Slice((*uint64)(descBase), cfg.FillSize),
		cachedCons: cfg.FillSize,
	}

	compMap, err := unix.Mmap(fd, XDP_UMEM_PGOFF_COMPLETION_RING,
		int(off.CR.Desc+uint64(cfg.CompSize)*8), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("mmap completion ring: %w", err)
	}
	s.compMap = compMap
	prod, cons, descBase = ringPointers(unsafe.Pointer(&compMap[0]), off.CR)
	s.comp = compRing{
		mask: cfg.CompSize - 1, size: cfg.CompSize,
		producer: prod, consumer: cons,
		ring: unsafe.Slice((*uint64)(descBase), cfg.CompSize),
	}

	descSize := uint64(unsafe.Sizeof(Descriptor{}))
	rxMap, err := unix.Mmap(fd, XDP_PGOFF_RX_RING,
		int(off.RX.Desc+uint64(cfg.RXSize)*descSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("mmap rx ring: %w", err)
	}
	s.rxMap = rxMap
	prod, cons, descBase = ringPointers(unsafe.Pointer(&rxMap[0]), off.RX)
	s.rx = rxRing{
		mask: cfg.RXSize - 1, size: cfg.RXSize,
		producer: prod, consumer: cons,
		ring:       unsafe.Slice((*Descriptor)(descBase), cfg.RXSize),
		cachedProd: *prod, cachedCons: *cons,
	}

	txMap, err := unix.Mmap(fd, XDP_PGOFF_TX_RING,
		int(off.TX.Desc+uint64(cfg.TXSize)*descSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("mmap tx ring: %w", err)
	}
	s.txMap = txMap
	prod, cons, descBase = ringPointers(unsafe.Pointer(&txMap[0]), off.TX)
	s.tx = txRing{
		mask: cfg.TXSize - 1, size: cfg.TXSize,
		producer: prod, consumer: cons,
		ring:       unsafe.Slice((*Descriptor)(descBase), cfg.TXSize),
		cachedProd: *prod, cachedCons: *cons + cfg.TXSize,
	}

	return s, nil
}

// getMmapOffsets issues getsockopt(fd, SOL_XDP, XDP_MMAP_OFFSETS, &off, &len),
// the one socket option with no typed wrapper in golang.org/x/sys/unix, so it
// goes through the raw syscall the same way the teacher's minimal.go talks
// to io_uring directly rather than through a higher-level binding.
func getMmapOffsets(fd int) (xdpMmapOffsets, error) {
	var off xdpMmapOffsets
	optlen := uint32(unsafe.Sizeof(off))
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(fd), uintptr(SOL_XDP), uintptr(XDP_MMAP_OFFSETS),
		uintptr(unsafe.Pointer(&off)), uintptr(unsafe.Pointer(&optlen)), 0)
	if errno != 0 {
		return off, errno
	}
	return off, nil
}

// PopulateFill reserves n fill-ring slots and fills them with the given
// frame offsets, then submits — the per-thread equivalent of
// flash__populate_fill_ring.
func (s *Socket) PopulateFill(offsets []uint64) error {
	idx, n := s.fill.Reserve(uint32(len(offsets)))
	if n != uint32(len(offsets)) {
		return fmt.Errorf("xsk: could not reserve %d fill slots, got %d", len(offsets), n)
	}
	for i, off := range offsets {
		s.fill.Set(idx+uint32(i), off)
	}
	s.fill.Submit(n)
	return nil
}

// Close unmaps the four ring regions and closes the socket fd, matching
// flash__xsk_close. It does not touch the UMEM the socket was bound to;
// callers detach that separately.
func (s *Socket) Close() error {
	for _, m := range [][]byte{s.fillMap, s.compMap, s.rxMap, s.txMap} {
		if m != nil {
			unix.Munmap(m)
		}
	}
	return unix.Close(s.FD)
}
