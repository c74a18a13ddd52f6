package ipc

import (
	"fmt"
	"net"
)

// Dial connects to the Monitor's rendezvous socket, matching start_uds_client.
func Dial(path string) (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: resolving %s: %w", path, err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: dialing %s: %w", path, err)
	}
	return conn, nil
}

// RequestThreadInfo issues the GetThreadInfo rendezvous exchange: send the
// command, send the request body, read back the assigned queue/UMEM info.
func RequestThreadInfo(conn *net.UnixConn, req ThreadInfoRequest) (ThreadInfoReply, error) {
	var reply ThreadInfoReply
	if err := SendCmd(conn, CmdGetThreadInfo); err != nil {
		return reply, fmt.Errorf("ipc: sending GetThreadInfo: %w", err)
	}
	if err := SendData(conn, req); err != nil {
		return reply, fmt.Errorf("ipc: sending thread info request: %w", err)
	}
	if err := RecvData(conn, &reply); err != nil {
		return reply, fmt.Errorf("ipc: receiving thread info reply: %w", err)
	}
	return reply, nil
}

// RequestUMEMFD issues the GetUMEM exchange and receives the shared UMEM
// memfd over SCM_RIGHTS.
func RequestUMEMFD(conn *net.UnixConn, umemID int32) (int, error) {
	if err := SendCmd(conn, CmdGetUMEM); err != nil {
		return -1, fmt.Errorf("ipc: sending GetUMEM: %w", err)
	}
	if err := SendData(conn, umemID); err != nil {
		return -1, fmt.Errorf("ipc: sending umem id: %w", err)
	}
	fd, err := RecvFD(conn)
	if err != nil {
		return -1, fmt.Errorf("ipc: receiving umem fd: %w", err)
	}
	return fd, nil
}

// RequestSocketFD issues the CreateSocket exchange and receives the newly
// bound AF_XDP socket fd over SCM_RIGHTS.
func RequestSocketFD(conn *net.UnixConn, req ThreadInfoRequest) (int, error) {
	if err := SendCmd(conn, CmdCreateSocket); err != nil {
		return -1, fmt.Errorf("ipc: sending CreateSocket: %w", err)
	}
	if err := SendData(conn, req); err != nil {
		return -1, fmt.Errorf("ipc: sending socket request: %w", err)
	}
	fd, err := RecvFD(conn)
	if err != nil {
		return -1, fmt.Errorf("ipc: receiving socket fd: %w", err)
	}
	return fd, nil
}

// Close sends CmdCloseConn and closes the connection.
func Close(conn *net.UnixConn) error {
	if err := SendCmd(conn, CmdCloseConn); err != nil {
		conn.Close()
		return fmt.Errorf("ipc: sending CloseConn: %w", err)
	}
	return conn.Close()
}
