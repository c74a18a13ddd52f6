// Package xdpprog loads the default redirect XDP program that steers
// packets into a queue's AF_XDP socket via an XSKMAP, and attaches it to
// an interface. Grounded on the cilium/ebpf + link loading sequence used
// to initialize AF_XDP acceleration in network-function frameworks in
// this corpus.
package xdpprog

import (
	"fmt"
	"net"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// Program is a loaded XDP redirect program attached to one interface,
// plus the XSKMAP its sockets are inserted into.
type Program struct {
	coll   *ebpf.Collection
	prog   *ebpf.Program
	xsks   *ebpf.Map
	link   link.Link
}

// Load reads an XDP object file from objPath (produced out of band by the
// project's build, matching the umem's custom_xsk=false "USING DEFAULT
// XDP PROGRAM" path in flash_cfgparser.c) and attaches its
// "xdp_redirect" program and "xsks_map" map to ifname, trying driver mode
// first and falling back to generic mode.
func Load(objPath, ifname string) (*Program, error) {
	f, err := os.Open(objPath)
	if err != nil {
		return nil, fmt.Errorf("xdpprog: opening %s: %w", objPath, err)
	}
	defer f.Close()

	spec, err := ebpf.LoadCollectionSpecFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("xdpprog: parsing object: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("xdpprog: loading collection: %w", err)
	}

	prog := coll.Programs["xdp_redirect"]
	if prog == nil {
		coll.Close()
		return nil, fmt.Errorf("xdpprog: program %q not found in %s", "xdp_redirect", objPath)
	}
	xsks := coll.Maps["xsks_map"]
	if xsks == nil {
		coll.Close()
		return nil, fmt.Errorf("xdpprog: map %q not found in %s", "xsks_map", objPath)
	}

	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("xdpprog: resolving interface %s: %w", ifname, err)
	}

	l, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: ifi.Index,
		Flags:     link.XDPDriverMode,
	})
	if err != nil {
		l, err = link.AttachXDP(link.XDPOptions{
			Program:   prog,
			Interface: ifi.Index,
			Flags:     link.XDPGenericMode,
		})
		if err != nil {
			coll.Close()
			return nil, fmt.Errorf("xdpprog: attaching to %s (driver and generic both failed): %w", ifname, err)
		}
	}

	return &Program{coll: coll, prog: prog, xsks: xsks, link: l}, nil
}

// InsertSocket registers an AF_XDP socket fd for queue in the XSKMAP so
// the kernel redirects that queue's traffic into it.
func (p *Program) InsertSocket(queue uint32, socketFD int) error {
	if err := p.xsks.Update(queue, uint32(socketFD), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("xdpprog: inserting socket for queue %d: %w", queue, err)
	}
	return nil
}

// Close detaches the program and releases the collection.
func (p *Program) Close() error {
	err := p.link.Close()
	p.coll.Close()
	return err
}
