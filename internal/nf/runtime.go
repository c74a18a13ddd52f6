// Package nf implements the network function runtime: attaching to the
// Monitor's shared UMEM, binding its assigned AF_XDP socket, and running
// the per-thread receive/mutate/forward loop. Grounded on flash_nf.c's
// __configure handshake and flash_txrx.c's hot loop.
package nf

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/flashgo/flashgo/internal/constants"
	"github.com/flashgo/flashgo/internal/interfaces"
	"github.com/flashgo/flashgo/internal/ipc"
	"github.com/flashgo/flashgo/internal/logging"
	"github.com/flashgo/flashgo/internal/pool"
	"github.com/flashgo/flashgo/internal/xsk"
)

// Identity names the NF and thread attaching to the Monitor.
type Identity struct {
	NFID     int32
	ThreadID int32
}

// Thread is one attached worker: its bound socket, its slice of the
// shared UMEM, and its private frame pool partition.
type Thread struct {
	id       Identity
	log      *logging.Logger
	conn     *net.UnixConn
	sock     *xsk.Socket
	buf      []byte
	pool     *pool.FramePool
	inspect  interfaces.Inspector
	observer interfaces.Observer
	cpu      int
}

// Attach performs the rendezvous handshake with the Monitor at
// socketPath, retrying dial until AttachTimeout elapses, matching
// __configure's client-side half.
func Attach(ctx context.Context, socketPath string, id Identity, inspect interfaces.Inspector, obs interfaces.Observer, log *logging.Logger) (*Thread, error) {
	if obs == nil {
		obs = interfaces.NoOpObserver{}
	}
	log = log.WithNF(id.NFID).WithQueue(int(id.ThreadID))

	conn, err := dialWithRetry(ctx, socketPath)
	if err != nil {
		return nil, fmt.Errorf("nf: attach: %w", err)
	}

	req := ipc.ThreadInfoRequest{NFID: id.NFID, ThreadID: id.ThreadID}
	info, err := ipc.RequestThreadInfo(conn, req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nf: requesting thread info: %w", err)
	}
	log.Info("assigned placement", "umem_id", info.UMEMID, "queue", info.Queue, "offset", info.UMEMOffset)

	umemFD, err := ipc.RequestUMEMFD(conn, info.UMEMID)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nf: requesting umem fd: %w", err)
	}

	sockFD, err := ipc.RequestSocketFD(conn, req)
	if err != nil {
		unix.Close(umemFD)
		conn.Close()
		return nil, fmt.Errorf("nf: requesting socket fd: %w", err)
	}

	sockCfg := xsk.SocketConfig{
		FillSize:   constants.DefaultFillSize,
		CompSize:   constants.DefaultCompSize,
		RXSize:     constants.DefaultRXSize,
		TXSize:     constants.DefaultTXSize,
		NeedWakeup: true,
	}
	sock, err := xsk.Bind(sockFD, sockCfg)
	if err != nil {
		unix.Close(umemFD)
		unix.Close(sockFD)
		conn.Close()
		return nil, fmt.Errorf("nf: binding socket rings: %w", err)
	}

	// Map the whole UMEM, not just one socket's share: this thread's frame
	// slice starts at UMEMOffset*FramePoolSize frames into the region.
	var st unix.Stat_t
	if err := unix.Fstat(umemFD, &st); err != nil {
		conn.Close()
		return nil, fmt.Errorf("nf: stat umem fd: %w", err)
	}
	buf, err := unix.Mmap(umemFD, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nf: mapping umem: %w", err)
	}

	fp := pool.New(constants.FrameSize, int(info.UMEMOffset), constants.FramePoolSize)

	offsets := make([]uint64, 0, constants.DefaultFillSize)
	for len(offsets) < constants.DefaultFillSize {
		off, ok := fp.Get()
		if !ok {
			break
		}
		offsets = append(offsets, off)
	}
	if err := sock.PopulateFill(offsets); err != nil {
		conn.Close()
		return nil, fmt.Errorf("nf: populating fill ring: %w", err)
	}

	// conn is kept open for the thread's entire life: the Monitor's
	// HandleConn keeps serving it, and CmdCloseConn is sent from Close
	// at real shutdown rather than here at handshake completion, matching
	// flash__xsk_close's close_uds_conn call site.
	return &Thread{
		id:       id,
		log:      log,
		conn:     conn,
		sock:     sock,
		buf:      buf,
		pool:     fp,
		inspect:  inspect,
		observer: obs,
		cpu:      int(info.Queue),
	}, nil
}

func dialWithRetry(ctx context.Context, path string) (*net.UnixConn, error) {
	deadline := time.Now().Add(constants.AttachTimeout)
	for {
		conn, err := ipc.Dial(path)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("nf: timed out waiting for monitor at %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(constants.AttachRetryInterval):
		}
	}
}

// PinCPU locks the calling goroutine's OS thread and sets its scheduler
// affinity to cpu, matching the teacher's per-queue thread pinning style.
func PinCPU(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
