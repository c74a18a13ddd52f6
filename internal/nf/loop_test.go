package nf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashgo/flashgo/internal/interfaces"
	"github.com/flashgo/flashgo/internal/logging"
	"github.com/flashgo/flashgo/internal/xsk"
)

type fakeInspector struct {
	action interfaces.Action
}

func (f fakeInspector) OnBatch(frame []byte, addr uint64, length uint32) interfaces.Action {
	return f.action
}

func newTestThread(t *testing.T, inspect interfaces.Inspector) *Thread {
	t.Helper()
	sock := xsk.NewLoopbackSocket(8, 8, 8, 8)
	return &Thread{
		id:       Identity{NFID: 1, ThreadID: 0},
		log:      logging.Default(),
		sock:     sock,
		buf:      make([]byte, 4096*8),
		inspect:  inspect,
		observer: interfaces.NoOpObserver{},
	}
}

func TestApplyInspectorForwardsByDefault(t *testing.T) {
	th := newTestThread(t, fakeInspector{action: interfaces.ActionForward})

	msg := xsk.NewBatchMsg(4)
	msg.Iov[0] = xsk.Vec{Addr: 0x1000, Len: 64}
	msg.Iov[1] = xsk.Vec{Addr: 0x2000, Len: 64}
	msg.Len = 2

	th.applyInspector(msg)

	assert.Equal(t, uint32(2), msg.Len)
}

func TestApplyInspectorDropsAndReleasesToFill(t *testing.T) {
	th := newTestThread(t, fakeInspector{action: interfaces.ActionDrop})

	msg := xsk.NewBatchMsg(4)
	msg.Iov[0] = xsk.Vec{Addr: 0x1000, Len: 64}
	msg.Len = 1

	th.applyInspector(msg)

	require.Equal(t, uint32(0), msg.Len)
	assert.Equal(t, uint64(0x1000), th.sock.FillRing()[0])
}

func TestForwardSubmitsToTX(t *testing.T) {
	th := newTestThread(t, nil)

	msg := xsk.NewBatchMsg(4)
	msg.Iov[0] = xsk.Vec{Addr: 0x3000, Len: 64}
	msg.Len = 1

	th.forward(msg, 3)

	assert.Equal(t, uint64(0x3000), th.sock.TXRing()[0].Addr)
}

func TestForwardDropsAfterExhaustingRetriesWhenTXFull(t *testing.T) {
	th := newTestThread(t, nil)

	// Fill the TX ring to capacity so reserve can never succeed.
	full := xsk.NewBatchMsg(8)
	for i := range full.Iov {
		full.Iov[i] = xsk.Vec{Addr: uint64(i) * 0x1000, Len: 64}
	}
	full.Len = 8
	th.sock.SendBatch(full, xsk.FlagRXTX)

	msg := xsk.NewBatchMsg(1)
	msg.Iov[0] = xsk.Vec{Addr: 0x9000, Len: 64}
	msg.Len = 1

	th.forward(msg, 2)

	// Dropped back to the fill ring rather than blocking forever.
	assert.Equal(t, uint64(0x9000), th.sock.FillRing()[0])
}
