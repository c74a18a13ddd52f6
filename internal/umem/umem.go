// Package umem manages the shared, page-locked packet buffer region the
// Monitor hands out to attached NFs. Creation follows the upstream
// sequence exactly: a sealed memfd, mmapped shared, refcounted across
// every socket bound against it.
package umem

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/flashgo/flashgo/internal/logging"
)

// UMEM is one shared packet buffer region plus its backing fd.
type UMEM struct {
	ID       int
	FD       int
	Buffer   []byte
	Size     int64
	FrameSize int

	mu       sync.Mutex
	refcount int
}

// Manager creates and tracks UMEM regions on behalf of the Monitor.
type Manager struct {
	log *logging.Logger
}

// NewManager returns a Manager. setrlimit(RLIMIT_MEMLOCK, {inf,inf}) is
// raised once here, matching flash__setup_umem — UMEM pages must never be
// paged out once mlocked by the kernel's AF_XDP registration path.
func NewManager(log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Default()
	}
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}); err != nil {
		log.Warn("setrlimit(RLIMIT_MEMLOCK) failed, continuing without it", "error", err)
	}
	return &Manager{log: log}, nil
}

// Create builds a new UMEM of the given size: memfd_create with sealing
// allowed, ftruncate to size, seal against shrink and further sealing, then
// mmap it PROT_READ|PROT_WRITE|MAP_SHARED. This matches create_umem_fd plus
// the mmap half of flash__setup_umem.
func (m *Manager) Create(id int, size int64, frameSize int) (*UMEM, error) {
	fd, err := unix.MemfdCreate(fmt.Sprintf("flashgo-umem%d", id), unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fcntl(F_SEAL_SHRINK): %w", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SEAL); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fcntl(F_SEAL_SEAL): %w", err)
	}

	buf, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &UMEM{ID: id, FD: fd, Buffer: buf, Size: size, FrameSize: frameSize}, nil
}

// Attach increments the UMEM's refcount for one more bound socket.
func (u *UMEM) Attach() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.refcount++
}

// Detach decrements the refcount and only actually tears the UMEM down
// (munmap + close) once it reaches zero, logging and returning nil
// otherwise — matching close_nf's "UMEM refcount == %d, not deleting UMEM"
// defensiveness instead of unmapping memory still referenced elsewhere.
func (u *UMEM) Detach(log *logging.Logger) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.refcount > 0 {
		u.refcount--
	}
	if u.refcount > 0 {
		if log != nil {
			log.Info("umem refcount nonzero, not deleting", "umem_id", u.ID, "refcount", u.refcount)
		}
		return nil
	}

	if u.Buffer != nil {
		if err := unix.Munmap(u.Buffer); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		u.Buffer = nil
	}
	if u.FD >= 0 {
		unix.Close(u.FD)
		u.FD = -1
	}
	return nil
}

// Refcount returns the current number of attached sockets, for tests and
// diagnostics.
func (u *UMEM) Refcount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.refcount
}

// Data returns the byte slice covering [addr, addr+length) within the
// UMEM's mmapped buffer, the Go equivalent of xsk_umem__get_data.
func (u *UMEM) Data(addr uint64, length uint32) []byte {
	return u.Buffer[addr : addr+uint64(length)]
}
