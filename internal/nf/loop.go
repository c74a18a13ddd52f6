package nf

import (
	"context"

	"github.com/flashgo/flashgo/internal/constants"
	"github.com/flashgo/flashgo/internal/interfaces"
	"github.com/flashgo/flashgo/internal/ipc"
	"github.com/flashgo/flashgo/internal/xsk"
)

// Run drives this thread's receive/inspect/forward loop until ctx is
// cancelled, the direct Go counterpart of flash_txrx.c's per-thread loop.
// maxRetries bounds how many times a full TX ring forces a busy-retry
// before the batch is dropped — the deviation from the original's
// exit(EXIT_FAILURE) under sustained backpressure.
func (t *Thread) Run(ctx context.Context, maxRetries int) error {
	if err := PinCPU(t.cpu); err != nil {
		t.log.Warn("cpu pinning failed, continuing unpinned", "cpu", t.cpu, "err", err)
	}

	msg := xsk.NewBatchMsg(constants.BatchSize)
	umemData := func(addr uint64, length uint32) []byte {
		return t.buf[addr : addr+uint64(length)]
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := t.sock.RecvBatch(umemData, msg, xsk.FlagRX)
		if n == 0 {
			continue
		}
		t.observer.ObserveRecv(0, uint64(n))

		t.applyInspector(msg)
		t.forward(msg, maxRetries)
	}
}

func (t *Thread) applyInspector(msg *xsk.BatchMsg) {
	if t.inspect == nil {
		return
	}
	kept := msg.Iov[:0]
	for i := uint32(0); i < msg.Len; i++ {
		v := msg.Iov[i]
		switch t.inspect.OnBatch(v.Data, v.Addr, v.Len) {
		case interfaces.ActionDrop, interfaces.ActionLocal:
			t.observer.ObserveDrop("inspector")
			t.releaseOne(v)
		default:
			kept = append(kept, v)
		}
	}
	msg.Len = uint32(len(kept))
}

func (t *Thread) releaseOne(v xsk.Vec) {
	m := xsk.NewBatchMsg(1)
	m.Iov[0] = v
	m.Len = 1
	t.sock.SendBatch(m, xsk.FlagRX)
}

// forward submits the surviving batch to TX, busy-retrying up to
// maxRetries times before dropping it back to the fill ring.
func (t *Thread) forward(msg *xsk.BatchMsg, maxRetries int) {
	if msg.Len == 0 {
		return
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		n := t.sock.SendBatch(msg, xsk.FlagRXTX)
		if n > 0 {
			t.observer.ObserveSend(0, uint64(n))
			return
		}
	}

	t.observer.ObserveDrop("tx backpressure")
	t.sock.SendBatch(msg, xsk.FlagRX)
}

// Close sends CmdCloseConn on the rendezvous connection (so the Monitor
// runs its DETACHING cleanup: refcount decrement and socket/ring teardown),
// then releases this thread's own socket.
func (t *Thread) Close() error {
	closeErr := ipc.Close(t.conn)
	sockErr := t.sock.Close()
	if closeErr != nil {
		return closeErr
	}
	return sockErr
}
