package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTopology = `{
  "umem": [
    {
      "umem_id": 0,
      "ifname": "eth0",
      "umem_scale": 4,
      "xdp_flags": "d",
      "bind_flags": "z",
      "mode": "",
      "custom_xsk": false,
      "frags_enabled": false,
      "nf": [
        {
          "nf_id": 1,
          "nf_ip": "127.0.0.1",
          "nf_port": 9001,
          "thread": [{"thread_id": 0, "queue": 0}, {"thread_id": 1, "queue": 1}]
        },
        {
          "nf_id": 2,
          "nf_ip": "127.0.0.1",
          "nf_port": 9002,
          "thread": [{"thread_id": 0, "queue": 2}]
        }
      ]
    }
  ],
  "route": {"1": [2], "2": []}
}`

func TestParseValidTopology(t *testing.T) {
	top, err := Parse(strings.NewReader(sampleTopology))
	require.NoError(t, err)
	require.Len(t, top.UMEM, 1)

	u := top.UMEM[0]
	assert.Equal(t, uint16(4), u.UMEMScale)
	assert.EqualValues(t, 1<<2, u.XDPFlags)  // XDP_FLAGS_DRV_MODE
	assert.EqualValues(t, 1<<2, u.BindFlags&^0x8) // XDP_ZEROCOPY bit, ignoring need-wakeup
	assert.NotZero(t, u.BindFlags&0x8)       // need-wakeup added because mode was empty

	assert.Equal(t, 0, u.NF[0].Thread[0].UMEMOffset)
	assert.Equal(t, 1, u.NF[0].Thread[1].UMEMOffset)
	assert.Equal(t, 2, u.NF[1].Thread[0].UMEMOffset)
	assert.Equal(t, 3, u.TotalThreads())

	assert.Equal(t, []int{2}, top.NextHops(1))
	assert.Empty(t, top.NextHops(2))
	assert.Nil(t, top.NextHops(99))
}

func TestParseRejectsSkbZerocopyCombo(t *testing.T) {
	bad := strings.Replace(sampleTopology, `"xdp_flags": "d"`, `"xdp_flags": "s"`, 1)
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible")
}

func TestParseRejectsUnknownRouteTarget(t *testing.T) {
	bad := strings.Replace(sampleTopology, `"1": [2]`, `"1": [99]`, 1)
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestParseRejectsEmptyUMEM(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"umem": [], "route": {}}`))
	require.Error(t, err)
}

func TestParseRejectsInvalidFlagLetter(t *testing.T) {
	bad := strings.Replace(sampleTopology, `"bind_flags": "z"`, `"bind_flags": "zz"`, 1)
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
}
