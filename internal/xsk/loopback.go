package xsk

// NewLoopbackSocket builds a Socket around plain in-process ring buffers,
// with no backing fd or mmap region. It exercises RecvBatch/SendBatch's
// ring choreography in tests for packages that depend on *Socket without
// a real AF_XDP kernel socket.
func NewLoopbackSocket(fillSize, compSize, rxSize, txSize uint32) *Socket {
	s := &Socket{FD: -1}
	s.fill = fillRing{
		mask: fillSize - 1, size: fillSize,
		producer: new(uint32), consumer: new(uint32),
		ring:       make([]uint64, fillSize),
		cachedCons: fillSize,
	}
	s.comp = compRing{
		mask: compSize - 1, size: compSize,
		producer: new(uint32), consumer: new(uint32),
		ring: make([]uint64, compSize),
	}
	s.rx = rxRing{
		mask: rxSize - 1, size: rxSize,
		producer: new(uint32), consumer: new(uint32),
		ring: make([]Descriptor, rxSize),
	}
	s.tx = txRing{
		mask: txSize - 1, size: txSize,
		producer: new(uint32), consumer: new(uint32),
		ring:       make([]Descriptor, txSize),
		cachedCons: txSize,
	}
	return s
}

// RXRing exposes the raw RX descriptor slots for test setup.
func (s *Socket) RXRing() []Descriptor { return s.rx.ring }

// RXProducer exposes the RX ring's producer counter for test setup.
func (s *Socket) RXProducer() *uint32 { return s.rx.producer }

// FillRing exposes the raw FILL ring offsets for test assertions.
func (s *Socket) FillRing() []uint64 { return s.fill.ring }

// TXRing exposes the raw TX descriptor slots for test assertions.
func (s *Socket) TXRing() []Descriptor { return s.tx.ring }
