//go:build !giouring
// +build !giouring

package ipc

import "fmt"

// accelServe is available when built with -tags giouring.
func accelServe(s *Server, handle Handler) error {
	return fmt.Errorf("ipc: giouring not enabled; build with -tags giouring, or use Serve")
}
