package ipc

import (
	"fmt"
	"net"
	"os"

	"github.com/flashgo/flashgo/internal/logging"
)

// Handler processes one rendezvous connection's command stream. It owns
// conn for the entire lifetime of the attaching NF thread — not just the
// initial handshake — and returns (closing conn) only once the peer sends
// CmdCloseConn at real shutdown, or disconnects unexpectedly.
type Handler func(conn *net.UnixConn)

// Server listens on a Unix domain socket and dispatches each accepted
// connection to a Handler, the Go counterpart of start_uds_server's
// accept loop.
type Server struct {
	path     string
	listener *net.UnixListener
	log      *logging.Logger
}

// Listen creates (or recreates) the rendezvous socket at path.
func Listen(path string, log *logging.Logger) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ipc: removing stale socket %s: %w", path, err)
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: resolving %s: %w", path, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: listening on %s: %w", path, err)
	}

	return &Server{path: path, listener: ln, log: log}, nil
}

// Serve accepts connections until the listener is closed, handing each
// off to handle on its own goroutine.
func (s *Server) Serve(handle Handler) error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("ipc: accept: %w", err)
		}
		go handle(conn)
	}
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

func isClosed(err error) bool {
	if nErr, ok := err.(*net.OpError); ok {
		return nErr.Err.Error() == "use of closed network connection"
	}
	return false
}
