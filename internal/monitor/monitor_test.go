package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashgo/flashgo/internal/ipc"
	"github.com/flashgo/flashgo/internal/logging"
)

const testTopologyJSON = `{
  "umem": [
    {
      "umem_id": 0,
      "ifname": "lo",
      "umem_scale": 1,
      "xdp_flags": "s",
      "bind_flags": "c",
      "mode": "",
      "custom_xsk": false,
      "frags_enabled": false,
      "nf": [
        {
          "nf_id": 1,
          "nf_ip": "127.0.0.1",
          "nf_port": 9001,
          "thread": [{"thread_id": 0, "queue": 0}]
        }
      ]
    }
  ],
  "route": {"1": []}
}`

func writeTestTopology(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(testTopologyJSON), 0o644))
	return path
}

func TestMonitorLoadUnloadState(t *testing.T) {
	m, err := New(logging.Default())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, m.State())

	path := writeTestTopology(t)
	require.NoError(t, m.Load(path))
	assert.Equal(t, StateLoaded, m.State())

	m.Unload()
	assert.Equal(t, StateIdle, m.State())
}

func TestMonitorLookupThread(t *testing.T) {
	m, err := New(logging.Default())
	require.NoError(t, err)
	require.NoError(t, m.Load(writeTestTopology(t)))

	reply, err := m.lookupThread(ipc.ThreadInfoRequest{NFID: 1, ThreadID: 0})
	require.NoError(t, err)
	assert.EqualValues(t, 0, reply.UMEMID)
	assert.EqualValues(t, 0, reply.Queue)
	assert.EqualValues(t, 0, reply.UMEMOffset)
}

func TestMonitorLookupThreadUnknown(t *testing.T) {
	m, err := New(logging.Default())
	require.NoError(t, err)
	require.NoError(t, m.Load(writeTestTopology(t)))

	_, err = m.lookupThread(ipc.ThreadInfoRequest{NFID: 99, ThreadID: 0})
	assert.Error(t, err)
}

// TestUnloadDetachesUMEMOncePerAttacher covers Scenario 6's requirement
// that a UMEM shared by N attached threads gets exactly N Detach calls at
// shutdown, not one flat call regardless of attach count.
func TestUnloadDetachesUMEMOncePerAttacher(t *testing.T) {
	m, err := New(logging.Default())
	require.NoError(t, err)
	require.NoError(t, m.Load(writeTestTopology(t)))

	m.mu.Lock()
	u, _, err := m.umemFor(0)
	require.NoError(t, err)
	u.Attach()
	u.Attach()
	m.umemAttach[0] = 2
	m.mu.Unlock()
	require.Equal(t, 2, u.Refcount())

	m.Unload()

	assert.Equal(t, 0, u.Refcount())
	assert.Nil(t, u.Buffer)
}

// TestDetachNFReleasesOneAttachAndClosesSocket covers the DETACHING
// transition CmdCloseConn is supposed to drive: one thread detaching
// decrements the UMEM refcount by exactly one and removes its socket
// entry, leaving UMEMs still referenced by other threads intact.
func TestDetachNFReleasesOneAttachAndClosesSocket(t *testing.T) {
	m, err := New(logging.Default())
	require.NoError(t, err)
	require.NoError(t, m.Load(writeTestTopology(t)))

	m.mu.Lock()
	u, _, err := m.umemFor(0)
	require.NoError(t, err)
	u.Attach()
	u.Attach()
	m.umemAttach[0] = 2
	m.sockets[socketKey(1, 0)] = &socketEntry{fd: -1, umem: 0}
	m.mu.Unlock()

	m.detachNF(1, 0)

	m.mu.Lock()
	_, stillPresent := m.sockets[socketKey(1, 0)]
	remaining := m.umemAttach[0]
	m.mu.Unlock()

	assert.False(t, stillPresent)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, 1, u.Refcount(), "umem must stay referenced by the other attacher")
}

// TestDetachNFUnknownIdentityIsNoop covers the case of a connection that
// disconnects before ever completing a request.
func TestDetachNFUnknownIdentityIsNoop(t *testing.T) {
	m, err := New(logging.Default())
	require.NoError(t, err)
	m.detachNF(-1, -1)
	m.detachNF(42, 0)
}

func TestMonitorStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "serving", StateServing.String())
}
