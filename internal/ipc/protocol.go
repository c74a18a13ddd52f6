// Package ipc implements the Unix-domain-socket rendezvous between the
// Monitor and attaching NF processes, the Go counterpart of flash_uds.c.
// Commands are a 4-byte little-endian code, a fixed-size request body, and
// a matching reply; file descriptors cross the socket as SCM_RIGHTS
// ancillary data.
package ipc

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Command identifies one rendezvous request, matching the FLASH__* command
// codes in flash_uds.h.
type Command int32

const (
	CmdCreateUMEM    Command = 1
	CmdGetUMEM       Command = 2
	CmdCreateSocket  Command = 3
	CmdCloseConn     Command = 4
	CmdGetThreadInfo Command = 5
	CmdGetUMEMOffset Command = 6
)

func (c Command) String() string {
	switch c {
	case CmdCreateUMEM:
		return "CreateUMEM"
	case CmdGetUMEM:
		return "GetUMEM"
	case CmdCreateSocket:
		return "CreateSocket"
	case CmdCloseConn:
		return "CloseConn"
	case CmdGetThreadInfo:
		return "GetThreadInfo"
	case CmdGetUMEMOffset:
		return "GetUMEMOffset"
	default:
		return fmt.Sprintf("Command(%d)", int32(c))
	}
}

// ThreadInfoRequest identifies which NF/thread is attaching.
type ThreadInfoRequest struct {
	NFID     int32
	ThreadID int32
}

// ThreadInfoReply carries the queue and UMEM placement the monitor has
// assigned to the requesting thread.
type ThreadInfoReply struct {
	UMEMID     int32
	Queue      uint8
	UMEMOffset int32
}

// SendCmd writes a 4-byte command code, matching send_cmd.
func SendCmd(conn *net.UnixConn, cmd Command) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(cmd))
	_, err := conn.Write(buf[:])
	return err
}

// RecvCmd reads a 4-byte command code, matching recv_cmd.
func RecvCmd(conn *net.UnixConn) (Command, error) {
	var buf [4]byte
	if _, err := readFull(conn, buf[:]); err != nil {
		return 0, err
	}
	return Command(binary.LittleEndian.Uint32(buf[:])), nil
}

// SendData writes a fixed-size binary payload, matching send_data.
func SendData(conn *net.UnixConn, v any) error {
	return binary.Write(conn, binary.LittleEndian, v)
}

// RecvData reads a fixed-size binary payload, matching recv_data.
func RecvData(conn *net.UnixConn, v any) error {
	return binary.Read(conn, binary.LittleEndian, v)
}

func readFull(conn *net.UnixConn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

// SendFD passes fd as SCM_RIGHTS ancillary data over conn, matching send_fd.
// At least one byte of real data must accompany ancillary data, so a single
// marker byte is written alongside it.
func SendFD(conn *net.UnixConn, fd int) error {
	rights := unix.UnixRights(fd)
	_, _, err := conn.WriteMsgUnix([]byte{0}, rights, nil)
	return err
}

// RecvFD reads one SCM_RIGHTS fd from conn, matching recv_fd.
func RecvFD(conn *net.UnixConn) (int, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	_, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return -1, err
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, fmt.Errorf("ipc: parsing control message: %w", err)
	}
	if len(cmsgs) == 0 {
		return -1, fmt.Errorf("ipc: no control message received")
	}

	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return -1, fmt.Errorf("ipc: parsing unix rights: %w", err)
	}
	if len(fds) == 0 {
		return -1, fmt.Errorf("ipc: no fd in control message")
	}
	return fds[0], nil
}
