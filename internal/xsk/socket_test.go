package xsk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSocket builds a Socket around in-process ring buffers, bypassing
// Bind/mmap entirely so the RecvBatch/SendBatch choreography can be
// exercised without a real AF_XDP fd.
func newTestSocket(t *testing.T, fillSize, compSize, rxSize, txSize uint32) *Socket {
	t.Helper()
	return NewLoopbackSocket(fillSize, compSize, rxSize, txSize)
}

func TestRecvBatchDrainsAvailableDescriptors(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)

	s.rx.ring[0] = Descriptor{Addr: 0x1000, Len: 64}
	s.rx.ring[1] = Descriptor{Addr: 0x2000, Len: 128}
	*s.rx.producer = 2

	buf := make([]byte, 4096)
	umemData := func(addr uint64, length uint32) []byte { return buf[:length] }

	msg := NewBatchMsg(8)
	n := s.RecvBatch(umemData, msg, FlagRX)

	require.Equal(t, uint32(2), n)
	assert.Equal(t, uint64(0x1000), msg.Iov[0].Addr)
	assert.Equal(t, uint32(128), msg.Iov[1].Len)
	assert.Equal(t, uint32(2), *s.rx.consumer)
}

func TestRecvBatchEmptyReturnsZero(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)
	msg := NewBatchMsg(8)
	n := s.RecvBatch(func(uint64, uint32) []byte { return nil }, msg, FlagRX)
	assert.Equal(t, uint32(0), n)
	assert.Equal(t, uint32(0), msg.Len)
}

func TestSendBatchDropPathReturnsFramesToFill(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)

	msg := NewBatchMsg(8)
	msg.Iov[0] = Vec{Addr: 0x3000, Len: 64}
	msg.Iov[1] = Vec{Addr: 0x4000, Len: 64}
	msg.Len = 2

	n := s.SendBatch(msg, FlagRX)

	require.Equal(t, uint32(2), n)
	assert.Equal(t, uint64(0x3000), s.fill.ring[0])
	assert.Equal(t, uint64(0x4000), s.fill.ring[1])
	assert.Equal(t, uint32(2), *s.fill.producer)
}

func TestSendBatchForwardPathSubmitsToTX(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)

	msg := NewBatchMsg(8)
	msg.Iov[0] = Vec{Addr: 0x5000, Len: 64}
	msg.Len = 1

	n := s.SendBatch(msg, FlagRXTX)

	require.Equal(t, uint32(1), n)
	assert.Equal(t, uint64(0x5000), s.tx.ring[0].Addr)
	assert.Equal(t, uint32(1), *s.tx.producer)
	assert.Equal(t, uint32(1), s.outstandingTX)
}

func TestSendBatchZeroLengthIsNoop(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)
	msg := NewBatchMsg(8)
	n := s.SendBatch(msg, FlagRXTX)
	assert.Equal(t, uint32(0), n)
}

func TestCompleteTXFirstReclaimsToFill(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)
	s.outstandingTX = 2

	s.comp.ring[0] = 0x1000
	s.comp.ring[1] = 0x2000
	*s.comp.producer = 2

	s.completeTXFirst()

	assert.Equal(t, uint32(0), s.outstandingTX)
	assert.Equal(t, uint32(2), *s.fill.producer)
	assert.Equal(t, uint32(2), *s.comp.consumer)
}

func TestDescriptorFragmentChainMarksContinued(t *testing.T) {
	s := newTestSocket(t, 8, 8, 8, 8)

	msg := NewBatchMsg(8)
	msg.Iov[0] = Vec{Addr: 0x1000, Len: 1500, Options: XDP_PKT_CONTD}
	msg.Iov[1] = Vec{Addr: 0x2000, Len: 200, Options: 0}
	msg.Len = 2

	n := s.SendBatch(msg, FlagRXTX)

	require.Equal(t, uint32(2), n)
	assert.True(t, s.tx.ring[0].Options&XDP_PKT_CONTD != 0)
	assert.True(t, s.tx.ring[1].IsEOP())
	assert.Equal(t, uint32(2), *s.tx.producer)
	assert.Equal(t, uint32(2), s.outstandingTX)
}
