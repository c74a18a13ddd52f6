package xsk

import (
	"golang.org/x/sys/unix"
)

// Flags selects the backpressure and ring-direction behavior of
// RecvBatch/SendBatch, mirroring flash_txrx.c's FLASH__RX/FLASH__RXTX/
// FLASH__BACKP/FLASH__NOSENDER bit flags.
type Flags uint32

const (
	FlagRX          Flags = 1 << 0 // operate on the fill ring
	FlagTX          Flags = 1 << 1 // operate on the tx ring
	FlagRXTX        Flags = FlagRX | FlagTX
	FlagBackpressure Flags = 1 << 2 // busy-poll rather than drop when the peer ring is full
	FlagNoSender    Flags = 1 << 3 // skip the completion sweep before reserving
)

// Vec is one received frame's view into the UMEM plus its original descriptor fields.
type Vec struct {
	Data    []byte
	Addr    uint64
	Len     uint32
	Options uint32
}

// BatchMsg is the pre-allocated scratch buffer RecvBatch/SendBatch fill in
// place, avoiding a per-call allocation on the hot path.
type BatchMsg struct {
	Iov []Vec
	Len uint32
}

// NewBatchMsg allocates a scratch buffer sized to the socket's batch size.
func NewBatchMsg(capacity int) *BatchMsg {
	return &BatchMsg{Iov: make([]Vec, capacity)}
}

func (s *Socket) kickTX() error {
	_, _, errno := unix.Syscall6(unix.SYS_SENDTO, uintptr(s.FD), 0, 0, unix.MSG_DONTWAIT, 0, 0)
	if errno == 0 || errno == unix.ENOBUFS || errno == unix.EAGAIN || errno == unix.EBUSY || errno == unix.ENETDOWN {
		return nil
	}
	return errno
}

func (s *Socket) wake() {
	unix.Syscall6(unix.SYS_RECVFROM, uintptr(s.FD), 0, 0, unix.MSG_DONTWAIT, 0, 0)
}

// completeTXFirst reclaims completed TX frames into the fill ring before a
// new TX reservation, the direct port of __complete_tx_rx_first.
func (s *Socket) completeTXFirst() {
	if s.outstandingTX == 0 {
		return
	}
	if s.cfg.BindFlags&XDP_COPY != 0 {
		s.kickTX()
	}

	num := s.outstandingTX
	const batchCap = 64
	if num > batchCap {
		num = batchCap
	}

	idxCQ, completed := s.comp.Peek(num)
	if completed == 0 {
		return
	}

	idxFQ, n := s.fill.Reserve(completed)
	for n != completed {
		if s.cfg.BusyPoll || s.cfg.NeedWakeup {
			s.wake()
		}
		idxFQ, n = s.fill.Reserve(completed)
	}

	for i := uint32(0); i < completed; i++ {
		s.fill.Set(idxFQ+i, s.comp.Get(idxCQ+i))
	}
	s.fill.Submit(completed)
	s.comp.Release(completed)
	s.outstandingTX -= completed
}

// busyReserveFill blocks until n fill-ring slots are free, used only under
// FlagBackpressure. The non-blocking default path uses a single Reserve
// attempt instead, so a full ring surfaces as n=0 for the caller's bounded
// retry-then-drop policy rather than spinning forever.
func (s *Socket) busyReserveFill(n uint32) uint32 {
	idx, got := s.fill.Reserve(n)
	for got != n {
		if s.cfg.BusyPoll || s.cfg.NeedWakeup {
			s.wake()
		}
		idx, got = s.fill.Reserve(n)
	}
	return idx
}

// busyReserveTX blocks until n TX slots are free, used only under
// FlagBackpressure; see busyReserveFill.
func (s *Socket) busyReserveTX(n uint32) uint32 {
	idx, got := s.tx.Reserve(n)
	for got != n {
		s.completeTXFirst()
		if s.cfg.BusyPoll || s.cfg.NeedWakeup {
			s.kickTX()
		}
		idx, got = s.tx.Reserve(n)
	}
	return idx
}

// RecvBatch drains up to len(msg.Iov) descriptors from the RX ring into
// msg, returning the number received. Ported from flash__recvmsg.
func (s *Socket) RecvBatch(umemData func(addr uint64, length uint32) []byte, msg *BatchMsg, flags Flags) uint32 {
	if flags&FlagRXTX != 0 && flags&FlagNoSender == 0 {
		s.completeTXFirst()
	}

	idxRX, rcvd := s.rx.Peek(uint32(len(msg.Iov)))
	if rcvd == 0 {
		if s.cfg.BusyPoll || s.cfg.NeedWakeup {
			s.wake()
		}
		msg.Len = 0
		return 0
	}

	if flags&FlagBackpressure != 0 {
		if flags&FlagTX != 0 {
			s.busyReserveTX(rcvd)
		} else if flags&FlagRX != 0 {
			s.busyReserveFill(rcvd)
		}
	}

	for i := uint32(0); i < rcvd; i++ {
		d := s.rx.Get(idxRX + i)
		msg.Iov[i] = Vec{
			Data:    umemData(d.Addr, d.Len),
			Len:     d.Len,
			Addr:    d.Addr,
			Options: d.Options,
		}
	}
	msg.Len = rcvd
	s.rx.Release(rcvd)
	return rcvd
}

// SendBatch submits msg.Len descriptors to the TX ring (FlagRXTX) or
// returns their frames to the FILL ring (FlagRX, the drop path). Ported
// from flash__sendmsg.
func (s *Socket) SendBatch(msg *BatchMsg, flags Flags) uint32 {
	nsend := msg.Len
	if nsend == 0 {
		return 0
	}

	var idxTX, idxFQ uint32
	if flags&FlagBackpressure != 0 {
		if flags&FlagTX != 0 {
			idxTX = s.busyReserveTX(nsend)
		} else if flags&FlagRX != 0 {
			idxFQ = s.busyReserveFill(nsend)
		}
	} else {
		var got uint32
		if flags&FlagTX != 0 {
			s.completeTXFirst()
			idxTX, got = s.tx.Reserve(nsend)
		} else if flags&FlagRX != 0 {
			idxFQ, got = s.fill.Reserve(nsend)
		}
		if got != nsend {
			return 0
		}
	}

	var fragsDone, nbFrags uint32
	for i := uint32(0); i < nsend; i++ {
		v := &msg.Iov[i]
		eop := v.Options&XDP_PKT_CONTD == 0

		if flags&FlagTX != 0 {
			nbFrags++
			d := s.tx.Get(idxTX)
			idxTX++
			d.Addr = v.Addr
			d.Len = v.Len
			if eop {
				d.Options = 0
			} else {
				d.Options = XDP_PKT_CONTD
			}
			if eop {
				fragsDone += nbFrags
				nbFrags = 0
			}
		} else if flags&FlagRX != 0 {
			s.fill.Set(idxFQ, v.Addr)
			idxFQ++
		}
	}

	if flags&FlagTX != 0 {
		s.tx.Submit(fragsDone)
		s.outstandingTX += fragsDone
	} else if flags&FlagRX != 0 {
		s.fill.Submit(nsend)
	}
	return nsend
}
