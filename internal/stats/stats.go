// Package stats tracks per-thread ring and application counters, the Go
// counterpart of the STATS-gated xsk_ring_stats/xsk_app_stats structs in
// flash_defines.h — kept unconditionally compiled here rather than behind
// a build tag, since the counters are cheap atomic increments.
package stats

import "sync/atomic"

// RingStats counts packet and fragment flow through one thread's rings.
type RingStats struct {
	RXFrags         atomic.Uint64
	RXPkts          atomic.Uint64
	TXFrags         atomic.Uint64
	TXPkts          atomic.Uint64
	RXDroppedPkts   atomic.Uint64
	RXInvalidPkts   atomic.Uint64
	TXInvalidPkts   atomic.Uint64
	RXFullPkts      atomic.Uint64
	RXFillEmptyPkts atomic.Uint64
	TXEmptyPkts     atomic.Uint64
}

// AppStats counts application-level events not tied to a specific ring.
type AppStats struct {
	RXEmptyPolls    atomic.Uint64
	FillFailPolls   atomic.Uint64
	CopyTXSendtos   atomic.Uint64
	TXWakeupSendtos atomic.Uint64
	OptPolls        atomic.Uint64
}

// RingSnapshot is a point-in-time copy of RingStats' counters.
type RingSnapshot struct {
	RXFrags, RXPkts                   uint64
	TXFrags, TXPkts                   uint64
	RXDroppedPkts, RXInvalidPkts      uint64
	TXInvalidPkts                     uint64
	RXFullPkts, RXFillEmptyPkts       uint64
	TXEmptyPkts                       uint64
}

// Snapshot reads the current counter values without resetting them.
func (s *RingStats) Snapshot() RingSnapshot {
	return RingSnapshot{
		RXFrags:         s.RXFrags.Load(),
		RXPkts:          s.RXPkts.Load(),
		TXFrags:         s.TXFrags.Load(),
		TXPkts:          s.TXPkts.Load(),
		RXDroppedPkts:   s.RXDroppedPkts.Load(),
		RXInvalidPkts:   s.RXInvalidPkts.Load(),
		TXInvalidPkts:   s.TXInvalidPkts.Load(),
		RXFullPkts:      s.RXFullPkts.Load(),
		RXFillEmptyPkts: s.RXFillEmptyPkts.Load(),
		TXEmptyPkts:     s.TXEmptyPkts.Load(),
	}
}

// Delta subtracts a previous snapshot from the current counters, matching
// the prev_* shadow fields' role in the original struct.
func (cur RingSnapshot) Delta(prev RingSnapshot) RingSnapshot {
	return RingSnapshot{
		RXFrags:         cur.RXFrags - prev.RXFrags,
		RXPkts:          cur.RXPkts - prev.RXPkts,
		TXFrags:         cur.TXFrags - prev.TXFrags,
		TXPkts:          cur.TXPkts - prev.TXPkts,
		RXDroppedPkts:   cur.RXDroppedPkts - prev.RXDroppedPkts,
		RXInvalidPkts:   cur.RXInvalidPkts - prev.RXInvalidPkts,
		TXInvalidPkts:   cur.TXInvalidPkts - prev.TXInvalidPkts,
		RXFullPkts:      cur.RXFullPkts - prev.RXFullPkts,
		RXFillEmptyPkts: cur.RXFillEmptyPkts - prev.RXFillEmptyPkts,
		TXEmptyPkts:     cur.TXEmptyPkts - prev.TXEmptyPkts,
	}
}

// Observer adapts RingStats/AppStats to interfaces.Observer so the NF hot
// path can report through the same interface regardless of backend.
type Observer struct {
	Ring *RingStats
	App  *AppStats
}

// NewObserver allocates a fresh pair of counter structs.
func NewObserver() *Observer {
	return &Observer{Ring: &RingStats{}, App: &AppStats{}}
}

func (o *Observer) ObserveRecv(frags, pkts uint64) {
	o.Ring.RXFrags.Add(frags)
	o.Ring.RXPkts.Add(pkts)
}

func (o *Observer) ObserveSend(frags, pkts uint64) {
	o.Ring.TXFrags.Add(frags)
	o.Ring.TXPkts.Add(pkts)
}

func (o *Observer) ObserveDrop(reason string) {
	switch reason {
	case "inspector":
		o.Ring.RXDroppedPkts.Add(1)
	case "tx backpressure":
		o.Ring.TXEmptyPkts.Add(1)
	default:
		o.Ring.RXDroppedPkts.Add(1)
	}
}

func (o *Observer) ObserveQueueDepth(queue int, depth uint32) {}
