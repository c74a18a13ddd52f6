package monitor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/flashgo/flashgo/internal/xsk"
)

// afXDP is AF_XDP's address family number; golang.org/x/sys/unix predates
// it on some pinned versions, so it is hand-defined the same way the xsk
// package hand-defines SOL_XDP.
const afXDP = 44

// rawXDPSocket opens a raw AF_XDP socket, the Go equivalent of the
// socket() half of xsk_socket__create.
func rawXDPSocket() (int, error) {
	fd, err := unix.Socket(afXDP, unix.SOCK_RAW, 0)
	if err != nil {
		return -1, fmt.Errorf("monitor: socket(AF_XDP): %w", err)
	}
	return fd, nil
}

// xdpSockaddr mirrors struct sockaddr_xdp.
type xdpSockaddr struct {
	Family       uint16
	Flags        uint16
	Ifindex      uint32
	QueueID      uint32
	SharedUmemFD uint32
}

// bindXDPSocket registers the UMEM-less socket against ifname/queue and
// mmaps its rings, matching xsk_socket__create's bind() + ring setup.
func bindXDPSocket(fd int, ifname string, queue int, cfg xsk.SocketConfig) error {
	iface, err := ifNameToIndex(ifname)
	if err != nil {
		return fmt.Errorf("monitor: resolving interface %s: %w", ifname, err)
	}

	sa := xdpSockaddr{
		Family:  afXDP,
		Ifindex: uint32(iface),
		QueueID: uint32(queue),
	}
	if err := rawBind(fd, &sa); err != nil {
		return fmt.Errorf("monitor: bind(AF_XDP): %w", err)
	}

	if _, err := xsk.Bind(fd, cfg); err != nil {
		return fmt.Errorf("monitor: mmapping rings: %w", err)
	}
	return nil
}

// rawBind issues bind(2) directly since sockaddr_xdp has no typed wrapper
// in golang.org/x/sys/unix, the same raw-syscall idiom getMmapOffsets uses
// for XDP_MMAP_OFFSETS.
func rawBind(fd int, sa *xdpSockaddr) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(sa)), unsafe.Sizeof(*sa))
	if errno != 0 {
		return errno
	}
	return nil
}

func ifNameToIndex(ifname string) (int, error) {
	iface, err := unix.IfNameIndex()
	if err != nil {
		return 0, err
	}
	for _, i := range iface {
		if i.Name == ifname {
			return int(i.Index), nil
		}
	}
	return 0, fmt.Errorf("no such interface: %s", ifname)
}

func fdCloser(fd int) error {
	return unix.Close(fd)
}
