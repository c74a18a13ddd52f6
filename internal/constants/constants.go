// Package constants collects the default sizing and timing values shared
// across the Monitor and NF runtime.
package constants

import "time"

// Frame and ring sizing, matching XSK_UMEM__DEFAULT_FRAME_SIZE and the
// batch size the upstream NF chaining project was distilled from.
const (
	// FrameSize is the size in bytes of one UMEM frame slab.
	FrameSize = 4096

	// FramesPerSocket is the number of frames reserved per AF_XDP socket.
	FramesPerSocket = 4 * 1024

	// BatchSize is the maximum number of descriptors moved per RecvBatch/SendBatch call.
	BatchSize = 64

	// DefaultCompSize, DefaultRXSize and DefaultTXSize mirror libxdp's default
	// ring depth (2048); the fill ring is twice that deep.
	DefaultFillSize = 2 * 2048
	DefaultCompSize = 2048
	DefaultRXSize   = 2048
	DefaultTXSize   = 2048

	// FramePoolSize is the number of frame offsets each worker thread's pool holds.
	FramePoolSize = DefaultFillSize
)

// AutoAssignNFID indicates the Monitor should assign the next free NF id.
const AutoAssignNFID = -1

// Rendezvous defaults.
const (
	// DefaultSocketPath is the well-known Unix domain socket the Monitor listens on.
	DefaultSocketPath = "/var/run/flashgo/sock"

	// MaxPendingConns is an accept backlog size for the rendezvous listener.
	// ipc.Listen does not pass it on; the listener uses the kernel's default.
	MaxPendingConns = 32
)

// DefaultXDPObjectPath is where the Monitor looks for the default redirect
// XDP program object file, built out of band, when a topology UMEM entry
// has custom_xsk: false.
const DefaultXDPObjectPath = "/usr/local/lib/flashgo/xdp_redirect.o"

// Timing constants for the attach handshake.
//
// A NF dialing before the Monitor has finished creating a UMEM would see
// ECONNREFUSED; attach retries on a short interval up to a bounded deadline
// rather than failing the process outright.
const (
	// AttachRetryInterval is how often a NF retries dialing the rendezvous socket.
	AttachRetryInterval = 100 * time.Millisecond

	// AttachTimeout bounds how long a NF waits for the Monitor to come up.
	AttachTimeout = 5 * time.Second
)
