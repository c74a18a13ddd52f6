// Package config parses a topology JSON document describing a UMEM and NF
// chain layout into typed structs, the Go counterpart of flash_cfgparser.c.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/flashgo/flashgo/internal/xsk"
)

// Topology is the top-level document: one or more UMEM regions, each
// fronting a physical interface and hosting a chain of NFs, plus a route
// table keyed by NF id.
type Topology struct {
	UMEM  []UMEMConfig   `json:"umem"`
	Route map[string][]int `json:"route"`
}

// UMEMConfig describes one shared-memory region bound to one interface.
type UMEMConfig struct {
	UMEMID       int    `json:"umem_id"`
	Ifname       string `json:"ifname"`
	UMEMScale    uint16 `json:"umem_scale"`
	XDPFlagsStr  string `json:"xdp_flags"`
	BindFlagsStr string `json:"bind_flags"`
	ModeStr      string `json:"mode"`
	CustomXSK    bool   `json:"custom_xsk"`
	FragsEnabled bool   `json:"frags_enabled"`
	NF           []NFConfig `json:"nf"`

	// Resolved fields, filled in by Parse from the *Str fields above.
	XDPFlags  uint32
	BindFlags uint32
	Mode      uint32
}

// NFConfig describes one network function's identity and thread set.
type NFConfig struct {
	NFID   int      `json:"nf_id"`
	NFIP   string   `json:"nf_ip"`
	NFPort uint16   `json:"nf_port"`
	Thread []ThreadConfig `json:"thread"`
}

// ThreadConfig describes one NF worker thread's queue assignment.
type ThreadConfig struct {
	ThreadID int   `json:"thread_id"`
	Queue    uint8 `json:"queue"`

	// UMEMOffset is assigned during Parse: a monotonically increasing
	// index over all threads in a UMEM, matching total_threads in
	// flash_cfgparser.c, used to partition the frame pool per thread.
	UMEMOffset int `json:"-"`
}

// flagByte maps a single-character flag letter to its XDP/flash bit value,
// the Go counterpart of get_flags in flash_cfgparser.c.
func flagByte(flag string) (uint32, error) {
	if len(flag) != 1 {
		return 0, fmt.Errorf("config: invalid flag %q, want a single letter", flag)
	}
	switch flag[0] {
	case 's':
		return xsk.XDP_FLAGS_SKB_MODE, nil
	case 'd':
		return xsk.XDP_FLAGS_DRV_MODE, nil
	case 'h':
		return xsk.XDP_FLAGS_HW_MODE, nil
	case 'c':
		return xsk.XDP_COPY, nil
	case 'z':
		return xsk.XDP_ZEROCOPY, nil
	case 'b':
		return flagBusyPoll, nil
	case 'm':
		return flagNoNeedWakeup, nil
	case 'p':
		return flagPoll, nil
	}
	return 0, fmt.Errorf("config: invalid flag %q", flag)
}

// flash-specific mode flags with no AF_XDP kernel equivalent, mirroring
// FLASH__BUSY_POLL / FLASH__NO_NEED_WAKEUP / FLASH__POLL in flash_defines.h.
const (
	flagBusyPoll     uint32 = 1 << 8
	flagNoNeedWakeup uint32 = 1 << 9
	flagPoll         uint32 = 1 << 10
)

// Parse reads and validates a topology document from r, resolving flag
// letters and assigning per-thread UMEM offsets.
func Parse(r io.Reader) (*Topology, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: reading topology: %w", err)
	}

	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parsing topology json: %w", err)
	}

	if len(t.UMEM) == 0 {
		return nil, fmt.Errorf("config: topology has no umem entries")
	}

	for i := range t.UMEM {
		u := &t.UMEM[i]
		if u.Ifname == "" {
			return nil, fmt.Errorf("config: umem %d missing ifname", u.UMEMID)
		}
		if u.UMEMScale == 0 {
			u.UMEMScale = 1
		}

		xdpFlags, err := flagByte(u.XDPFlagsStr)
		if err != nil {
			return nil, fmt.Errorf("config: umem %d xdp_flags: %w", u.UMEMID, err)
		}
		bindFlags, err := flagByte(u.BindFlagsStr)
		if err != nil {
			return nil, fmt.Errorf("config: umem %d bind_flags: %w", u.UMEMID, err)
		}
		if u.XDPFlagsStr == "s" && u.BindFlagsStr == "z" {
			return nil, fmt.Errorf("config: umem %d: skb mode is incompatible with zerocopy bind", u.UMEMID)
		}

		u.XDPFlags = xdpFlags
		u.BindFlags = bindFlags
		if u.ModeStr == "" {
			u.BindFlags |= xsk.XDP_USE_NEED_WAKEUP
		} else {
			mode, err := flagByte(u.ModeStr)
			if err != nil {
				return nil, fmt.Errorf("config: umem %d mode: %w", u.UMEMID, err)
			}
			u.Mode = mode
		}

		offset := 0
		for j := range u.NF {
			nf := &u.NF[j]
			if nf.NFIP == "" {
				return nil, fmt.Errorf("config: umem %d nf %d missing nf_ip", u.UMEMID, nf.NFID)
			}
			if len(nf.Thread) == 0 {
				return nil, fmt.Errorf("config: umem %d nf %d has no threads", u.UMEMID, nf.NFID)
			}
			for k := range nf.Thread {
				nf.Thread[k].UMEMOffset = offset
				offset++
			}
		}
	}

	if err := t.validateRoutes(); err != nil {
		return nil, err
	}

	return &t, nil
}

// validateRoutes confirms every route entry and downstream reference names
// an NF id that actually exists in the topology.
func (t *Topology) validateRoutes() error {
	known := make(map[int]bool)
	for _, u := range t.UMEM {
		for _, nf := range u.NF {
			known[nf.NFID] = true
		}
	}
	for key, edges := range t.Route {
		var id int
		if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
			return fmt.Errorf("config: route key %q is not a valid nf id", key)
		}
		if !known[id] {
			return fmt.Errorf("config: route references unknown source nf %d", id)
		}
		for _, e := range edges {
			if !known[e] {
				return fmt.Errorf("config: route %d -> %d references unknown nf", id, e)
			}
		}
	}
	return nil
}

// LoadFile opens and parses a topology file on disk.
func LoadFile(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// NextHops returns the downstream NF ids for nfID, or nil if nfID is a
// terminal hop with no further routing entry.
func (t *Topology) NextHops(nfID int) []int {
	return t.Route[fmt.Sprintf("%d", nfID)]
}

// TotalThreads returns the sum of thread counts across all NFs in a umem,
// matching total_sockets in flash_cfgparser.c.
func (u *UMEMConfig) TotalThreads() int {
	n := 0
	for _, nf := range u.NF {
		n += len(nf.Thread)
	}
	return n
}
