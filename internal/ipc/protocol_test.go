package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenAndDial(t *testing.T) (server, client *net.UnixConn, cleanup func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashgo-ipc-test.sock")

	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	connCh := make(chan *net.UnixConn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			connCh <- c.(*net.UnixConn)
		}
	}()

	c, err := Dial(path)
	require.NoError(t, err)

	select {
	case srv := <-connCh:
		return srv, c, func() {
			srv.Close()
			c.Close()
			ln.Close()
			os.Remove(path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
		return nil, nil, func() {}
	}
}

func TestSendRecvCmd(t *testing.T) {
	srv, cli, cleanup := listenAndDial(t)
	defer cleanup()

	go SendCmd(cli, CmdGetThreadInfo)

	cmd, err := RecvCmd(srv)
	require.NoError(t, err)
	assert.Equal(t, CmdGetThreadInfo, cmd)
}

func TestSendRecvData(t *testing.T) {
	srv, cli, cleanup := listenAndDial(t)
	defer cleanup()

	req := ThreadInfoRequest{NFID: 7, ThreadID: 2}
	go SendData(cli, req)

	var got ThreadInfoRequest
	require.NoError(t, RecvData(srv, &got))
	assert.Equal(t, req, got)
}

func TestSendRecvFD(t *testing.T) {
	srv, cli, cleanup := listenAndDial(t)
	defer cleanup()

	f, err := os.CreateTemp(t.TempDir(), "flashgo-fd-test")
	require.NoError(t, err)
	defer f.Close()

	go SendFD(cli, int(f.Fd()))

	fd, err := RecvFD(srv)
	require.NoError(t, err)
	assert.Greater(t, fd, 0)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "CreateUMEM", CmdCreateUMEM.String())
	assert.Equal(t, "GetUMEMOffset", CmdGetUMEMOffset.String())
	assert.Contains(t, Command(99).String(), "99")
}
