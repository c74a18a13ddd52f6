//go:build giouring
// +build giouring

package ipc

import (
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/pawelgaczynski/giouring"
)

const accelQueueDepth = 256

// accelServe runs the accept loop entirely through a single io_uring
// instance: each completed SQE re-arms another accept on the listening
// socket before the accepted connection is handed to handle, so a burst
// of simultaneous NF attach attempts costs one io_uring_enter instead of
// one accept(2) per goroutine wakeup.
func accelServe(s *Server, handle Handler) error {
	rawConn, err := s.listener.SyscallConn()
	if err != nil {
		return fmt.Errorf("ipc: getting raw listener conn: %w", err)
	}
	var listenFD int
	if err := rawConn.Control(func(fd uintptr) { listenFD = int(fd) }); err != nil {
		return fmt.Errorf("ipc: controlling raw listener conn: %w", err)
	}

	ring, err := giouring.CreateRing(accelQueueDepth)
	if err != nil {
		return fmt.Errorf("ipc: creating io_uring: %w", err)
	}
	defer ring.QueueExit()

	if err := armAccept(ring, listenFD); err != nil {
		return fmt.Errorf("ipc: arming initial accept: %w", err)
	}

	for {
		if _, err := ring.SubmitAndWait(1); err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("ipc: io_uring submit: %w", err)
		}

		cqe, err := ring.WaitCQE()
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("ipc: io_uring wait: %w", err)
		}

		connFD := int(cqe.Res)
		ring.CQESeen(cqe)

		if connFD < 0 {
			if syscall.Errno(-connFD) == syscall.ECANCELED {
				return nil
			}
			s.log.Warn("accelerated accept failed", "errno", -connFD)
		} else {
			file := os.NewFile(uintptr(connFD), "flashgo-nf")
			conn, err := net.FileConn(file)
			file.Close()
			if err != nil {
				s.log.Warn("accelerated accept: wrapping fd", "error", err)
				syscall.Close(connFD)
			} else if uc, ok := conn.(*net.UnixConn); ok {
				go handle(uc)
			} else {
				conn.Close()
			}
		}

		if err := armAccept(ring, listenFD); err != nil {
			return fmt.Errorf("ipc: re-arming accept: %w", err)
		}
	}
}

func armAccept(ring *giouring.Ring, listenFD int) error {
	sqe := ring.GetSQE()
	if sqe == nil {
		return fmt.Errorf("submission queue full")
	}
	sqe.PrepareAccept(listenFD, 0, 0, 0)
	return nil
}
