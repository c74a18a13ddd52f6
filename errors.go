// Package flashgo implements a userspace framework for chaining network
// functions on top of an AF_XDP kernel-bypass socket.
package flashgo

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is a structured flashgo error with enough context to route recovery
// decisions without string matching.
type Error struct {
	Op    string // operation that failed, e.g. "umem.Create", "ipc.Dial"
	NFID  int32  // NF id, -1 if not applicable
	Queue int    // queue/thread index, -1 if not applicable
	Kind  Kind
	Errno syscall.Errno // kernel errno, 0 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.NFID >= 0 {
		parts = append(parts, fmt.Sprintf("nf=%d", e.NFID))
	}
	if e.Queue >= 0 {
		parts = append(parts, fmt.Sprintf("queue=%d", e.Queue))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("flashgo: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("flashgo: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// Kind is the high-level error taxonomy a caller can branch on.
type Kind string

const (
	KindConfig   Kind = "config error"   // malformed or invalid topology
	KindIPC      Kind = "ipc error"      // rendezvous handshake failure
	KindResource Kind = "resource error" // mmap/memfd/rlimit failure
	KindSocket   Kind = "socket error"   // AF_XDP bind/sockopt failure
	KindRing     Kind = "ring error"     // descriptor ring invariant violation
	KindFrame    Kind = "frame error"    // frame pool exhaustion/double-issue
)

// NewError builds a structured error with no NF/queue context.
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, NFID: -1, Queue: -1, Kind: kind, Msg: msg}
}

// NewNFError builds a structured error scoped to one attached NF.
func NewNFError(op string, nfID int32, kind Kind, msg string) *Error {
	return &Error{Op: op, NFID: nfID, Queue: -1, Kind: kind, Msg: msg}
}

// NewQueueError builds a structured error scoped to one NF worker thread.
func NewQueueError(op string, nfID int32, queue int, kind Kind, msg string) *Error {
	return &Error{Op: op, NFID: nfID, Queue: queue, Kind: kind, Msg: msg}
}

// WrapErrno wraps a raw syscall errno with flashgo context, mapping it to a Kind.
func WrapErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, NFID: -1, Queue: -1, Kind: mapErrnoToKind(errno), Errno: errno, Msg: errno.Error(), Inner: errno}
}

// WrapError wraps an arbitrary error with flashgo op context.
func WrapError(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	if fe, ok := inner.(*Error); ok {
		return &Error{Op: op, NFID: fe.NFID, Queue: fe.Queue, Kind: fe.Kind, Errno: fe.Errno, Msg: fe.Msg, Inner: fe.Inner}
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, NFID: -1, Queue: -1, Kind: mapErrnoToKind(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, NFID: -1, Queue: -1, Kind: kind, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToKind(errno syscall.Errno) Kind {
	switch errno {
	case syscall.ENOMEM, syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE:
		return KindResource
	case syscall.EINVAL, syscall.E2BIG:
		return KindConfig
	case syscall.EADDRINUSE, syscall.ENOENT, syscall.ECONNREFUSED, syscall.EPIPE:
		return KindIPC
	case syscall.EPERM, syscall.EACCES, syscall.ENODEV, syscall.EOPNOTSUPP:
		return KindSocket
	default:
		return KindResource
	}
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
