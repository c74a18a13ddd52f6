package ipc

// ServeAccelerated is an alternative to Serve that completes accepts
// through io_uring instead of a blocking accept(2) per goroutine, for
// monitors fielding very high NF attach/reattach churn. It requires the
// giouring build tag; without it, accelServe reports that the tag is
// missing and callers should fall back to Serve. This mirrors the
// teacher's NewRealRing/stub split for its own giouring-gated ring
// backend: the accelerated path is opt-in and the default build never
// references the dependency.
func (s *Server) ServeAccelerated(handle Handler) error {
	return accelServe(s, handle)
}
