// Package monitor implements the control-plane process that owns UMEM
// regions and AF_XDP sockets on behalf of attaching NF processes, the Go
// counterpart of flash_monitor.c.
package monitor

import (
	"fmt"
	"net"
	"sync"

	"github.com/flashgo/flashgo/internal/config"
	"github.com/flashgo/flashgo/internal/constants"
	"github.com/flashgo/flashgo/internal/ipc"
	"github.com/flashgo/flashgo/internal/logging"
	"github.com/flashgo/flashgo/internal/umem"
	"github.com/flashgo/flashgo/internal/xdpprog"
	"github.com/flashgo/flashgo/internal/xsk"
)

// State is the Monitor's lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateServing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateServing:
		return "serving"
	default:
		return "unknown"
	}
}

// socketEntry tracks one bound AF_XDP socket fd handed out to an NF thread.
type socketEntry struct {
	fd   int
	umem int
}

// Monitor owns the topology, the UMEM regions it implies, and the
// sockets created on behalf of attaching NF threads.
type Monitor struct {
	mu    sync.Mutex
	state State
	log   *logging.Logger

	top        *config.Topology
	umems      map[int]*umem.UMEM
	umemMgr    *umem.Manager
	sockets    map[string]*socketEntry      // key: "nfID:threadID"
	umemAttach map[int]int                  // umem id -> outstanding Attach() calls not yet matched by Detach()
	xdpProgs   map[string]*xdpprog.Program  // ifname -> loaded default redirect program
}

// New constructs an idle Monitor.
func New(log *logging.Logger) (*Monitor, error) {
	mgr, err := umem.NewManager(log)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	return &Monitor{
		state:      StateIdle,
		log:        log,
		umems:      make(map[int]*umem.UMEM),
		umemMgr:    mgr,
		sockets:    make(map[string]*socketEntry),
		umemAttach: make(map[int]int),
		xdpProgs:   make(map[string]*xdpprog.Program),
	}, nil
}

// Load parses a topology file and transitions the Monitor into the Loaded
// state, matching process_input's "load" branch. UMEM regions are not
// created until an NF's first attach, matching configure_umem's lazy
// create-on-demand behavior. Loading while a topology is already loaded
// is an error; Unload must run first.
func (m *Monitor) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.top != nil {
		return fmt.Errorf("monitor: load: a topology is already loaded, unload it first")
	}

	top, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("monitor: load: %w", err)
	}

	m.top = top
	m.state = StateLoaded
	m.log.Info("topology loaded", "umem_count", len(top.UMEM))
	return nil
}

// Unload tears down every UMEM and socket and returns the Monitor to Idle,
// matching close_nfg. Any NF that never sent CmdCloseConn still holds an
// outstanding Attach() on its UMEM, so each UMEM is Detach()ed once per
// attacher still on record in m.umemAttach, not once flat per map entry —
// a UMEM shared by N attached threads needs N matching Detach calls before
// umem.Detach actually munmaps and closes it.
func (m *Monitor) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, s := range m.sockets {
		if err := closeFD(s.fd); err != nil {
			m.log.Warn("error closing socket fd during unload", "key", key, "err", err)
		}
	}
	m.sockets = make(map[string]*socketEntry)

	for ifname, prog := range m.xdpProgs {
		if err := prog.Close(); err != nil {
			m.log.Warn("error detaching xdp program during unload", "ifname", ifname, "err", err)
		}
	}
	m.xdpProgs = make(map[string]*xdpprog.Program)

	for id, u := range m.umems {
		count := m.umemAttach[id]
		for i := 0; i < count; i++ {
			if err := u.Detach(m.log); err != nil {
				m.log.Warn("error detaching umem during unload", "umem_id", id, "err", err)
			}
		}
		delete(m.umems, id)
	}
	m.umemAttach = make(map[int]int)

	m.top = nil
	m.state = StateIdle
	m.log.Info("topology unloaded")
}

// State reports the Monitor's current lifecycle stage.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// umemFor lazily creates (or returns the existing) UMEM for umemID,
// matching configure_umem.
func (m *Monitor) umemFor(umemID int) (*umem.UMEM, *config.UMEMConfig, error) {
	var uc *config.UMEMConfig
	for i := range m.top.UMEM {
		if m.top.UMEM[i].UMEMID == umemID {
			uc = &m.top.UMEM[i]
			break
		}
	}
	if uc == nil {
		return nil, nil, fmt.Errorf("monitor: unknown umem id %d", umemID)
	}

	if u, ok := m.umems[umemID]; ok {
		return u, uc, nil
	}

	total := uc.TotalThreads()
	size := int64(constants.FramesPerSocket) * int64(constants.FrameSize) * int64(total)
	u, err := m.umemMgr.Create(umemID, size, constants.FrameSize)
	if err != nil {
		return nil, nil, fmt.Errorf("monitor: creating umem %d: %w", umemID, err)
	}
	m.umems[umemID] = u
	return u, uc, nil
}

func closeFD(fd int) error {
	return fdCloser(fd)
}

// HandleConn dispatches one rendezvous connection's command stream until
// the peer sends CmdCloseConn or disconnects. It remembers the identity of
// the NF thread this connection serves (learned from its first
// GetThreadInfo/CreateSocket request) so CmdCloseConn can run the
// DETACHING cleanup — unmap rings, close the socket, decrement the
// owning UMEM's refcount — for the right thread.
func (m *Monitor) HandleConn(conn *net.UnixConn) {
	defer conn.Close()

	var nfID, threadID int32 = -1, -1

	for {
		cmd, err := ipc.RecvCmd(conn)
		if err != nil {
			if nfID >= 0 {
				m.detachNF(nfID, threadID)
			}
			return
		}

		switch cmd {
		case ipc.CmdGetThreadInfo:
			nfID, threadID = m.handleGetThreadInfo(conn)
		case ipc.CmdGetUMEM:
			m.handleGetUMEM(conn)
		case ipc.CmdCreateSocket:
			nfID, threadID = m.handleCreateSocket(conn)
		case ipc.CmdCloseConn:
			m.detachNF(nfID, threadID)
			return
		default:
			m.log.Warn("unknown rendezvous command", "cmd", cmd)
			if nfID >= 0 {
				m.detachNF(nfID, threadID)
			}
			return
		}
	}
}

// detachNF runs the DETACHING transition for one NF thread: closes its
// bound socket fd, decrements the owning UMEM's attach count, and Detaches
// it once — matching close_nf's per-thread teardown. A no-op if nfID is
// unknown (e.g. the peer disconnected before ever completing a request).
func (m *Monitor) detachNF(nfID, threadID int32) {
	if nfID < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := socketKey(nfID, threadID)
	entry, ok := m.sockets[key]
	if !ok {
		return
	}
	delete(m.sockets, key)

	if err := closeFD(entry.fd); err != nil {
		m.log.Warn("error closing socket fd on detach", "key", key, "err", err)
	}

	if u, ok := m.umems[entry.umem]; ok {
		if m.umemAttach[entry.umem] > 0 {
			m.umemAttach[entry.umem]--
		}
		if err := u.Detach(m.log); err != nil {
			m.log.Warn("error detaching umem", "umem_id", entry.umem, "err", err)
		}
	}

	m.log.Info("nf detached", "nf_id", nfID, "thread_id", threadID)
}

func (m *Monitor) handleGetThreadInfo(conn *net.UnixConn) (nfID, threadID int32) {
	var req ipc.ThreadInfoRequest
	if err := ipc.RecvData(conn, &req); err != nil {
		m.log.Error("reading thread info request", "err", err)
		return -1, -1
	}

	m.mu.Lock()
	reply, err := m.lookupThread(req)
	m.mu.Unlock()
	if err != nil {
		m.log.Error("thread lookup failed", "nf_id", req.NFID, "thread_id", req.ThreadID, "err", err)
		return req.NFID, req.ThreadID
	}

	if err := ipc.SendData(conn, reply); err != nil {
		m.log.Error("sending thread info reply", "err", err)
	}
	return req.NFID, req.ThreadID
}

func (m *Monitor) lookupThread(req ipc.ThreadInfoRequest) (ipc.ThreadInfoReply, error) {
	if m.top == nil {
		return ipc.ThreadInfoReply{}, fmt.Errorf("monitor: no topology loaded")
	}
	for i := range m.top.UMEM {
		u := &m.top.UMEM[i]
		for _, nf := range u.NF {
			if int32(nf.NFID) != req.NFID {
				continue
			}
			for _, th := range nf.Thread {
				if int32(th.ThreadID) != req.ThreadID {
					continue
				}
				return ipc.ThreadInfoReply{
					UMEMID:     int32(u.UMEMID),
					Queue:      th.Queue,
					UMEMOffset: int32(th.UMEMOffset),
				}, nil
			}
		}
	}
	return ipc.ThreadInfoReply{}, fmt.Errorf("monitor: nf %d thread %d not found in topology", req.NFID, req.ThreadID)
}

func (m *Monitor) handleGetUMEM(conn *net.UnixConn) {
	var umemID int32
	if err := ipc.RecvData(conn, &umemID); err != nil {
		m.log.Error("reading umem id", "err", err)
		return
	}

	m.mu.Lock()
	u, _, err := m.umemFor(int(umemID))
	if err != nil {
		m.mu.Unlock()
		m.log.Error("umem lookup failed", "umem_id", umemID, "err", err)
		return
	}
	u.Attach()
	m.umemAttach[int(umemID)]++
	m.mu.Unlock()

	if err := ipc.SendFD(conn, u.FD); err != nil {
		m.log.Error("sending umem fd", "err", err)
	}
}

func (m *Monitor) handleCreateSocket(conn *net.UnixConn) (nfID, threadID int32) {
	var req ipc.ThreadInfoRequest
	if err := ipc.RecvData(conn, &req); err != nil {
		m.log.Error("reading socket request", "err", err)
		return -1, -1
	}

	m.mu.Lock()
	reply, lookupErr := m.lookupThread(req)
	if lookupErr != nil {
		m.mu.Unlock()
		m.log.Error("socket request: thread lookup failed", "err", lookupErr)
		return req.NFID, req.ThreadID
	}

	_, uc, err := m.umemFor(int(reply.UMEMID))
	if err != nil {
		m.mu.Unlock()
		m.log.Error("socket request: umem lookup failed", "err", err)
		return req.NFID, req.ThreadID
	}
	m.state = StateServing
	m.mu.Unlock()

	fd, err := createBoundSocket(uc, reply.Queue)
	if err != nil {
		m.log.Error("creating socket", "nf_id", req.NFID, "queue", reply.Queue, "err", err)
		return req.NFID, req.ThreadID
	}

	if !uc.CustomXSK {
		if err := m.insertIntoXDPProgram(uc.Ifname, reply.Queue, fd); err != nil {
			m.log.Error("attaching default xdp program", "ifname", uc.Ifname, "queue", reply.Queue, "err", err)
		}
	}

	m.mu.Lock()
	m.sockets[socketKey(req.NFID, req.ThreadID)] = &socketEntry{fd: fd, umem: int(reply.UMEMID)}
	m.mu.Unlock()

	if err := ipc.SendFD(conn, fd); err != nil {
		m.log.Error("sending socket fd", "err", err)
	}
	return req.NFID, req.ThreadID
}

// insertIntoXDPProgram loads (or reuses an already-loaded) default redirect
// XDP program for ifname and inserts socketFD into its XSKMAP at queue,
// matching flash_cfgparser.c's "USING DEFAULT XDP PROGRAM" path for UMEM
// entries with custom_xsk: false.
func (m *Monitor) insertIntoXDPProgram(ifname string, queue uint8, socketFD int) error {
	m.mu.Lock()
	prog, ok := m.xdpProgs[ifname]
	if !ok {
		var err error
		prog, err = xdpprog.Load(constants.DefaultXDPObjectPath, ifname)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("loading default xdp program: %w", err)
		}
		m.xdpProgs[ifname] = prog
	}
	m.mu.Unlock()

	return prog.InsertSocket(uint32(queue), socketFD)
}

func socketKey(nfID, threadID int32) string {
	return fmt.Sprintf("%d:%d", nfID, threadID)
}

// createBoundSocket opens and binds a new AF_XDP socket on ifname/queue,
// matching flash__setup_xsk's socket-creation path.
func createBoundSocket(uc *config.UMEMConfig, queue uint8) (int, error) {
	fd, err := rawXDPSocket()
	if err != nil {
		return -1, fmt.Errorf("monitor: creating af_xdp socket: %w", err)
	}

	cfg := xsk.SocketConfig{
		FillSize:   constants.DefaultFillSize,
		CompSize:   constants.DefaultCompSize,
		RXSize:     constants.DefaultRXSize,
		TXSize:     constants.DefaultTXSize,
		BindFlags:  uc.BindFlags,
		NeedWakeup: uc.BindFlags&xsk.XDP_USE_NEED_WAKEUP != 0,
		BusyPoll:   uc.ModeStr == "b",
	}
	if err := bindXDPSocket(fd, uc.Ifname, int(queue), cfg); err != nil {
		return -1, err
	}
	return fd, nil
}
