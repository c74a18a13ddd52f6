// Package sessiontable provides sharded, concurrency-safe flow state for
// stateful NFs (e.g. connection tracking, NAT). Adapted from the sharded
// memory-region locking used for concurrent block I/O: where that backend
// shards a byte offset into lock stripes, this one shards a flow key's
// hash, giving every worker thread parallel access to disjoint flows.
package sessiontable

import (
	"sync"
	"time"
)

// NumShards is the number of lock stripes the table partitions flows
// across. A prime count reduces systematic collisions from sequential
// 5-tuple hashes.
const NumShards = 257

// Key identifies one flow by its canonical 5-tuple.
type Key struct {
	SrcIP, DstIP     uint32
	SrcPort, DstPort uint16
	Proto            uint8
}

// Session holds per-flow state plus the bookkeeping Sweep uses to age out
// idle entries.
type Session struct {
	LastSeen   time.Time
	AttachEpoch uint64
	Data        any
}

type shard struct {
	mu    sync.RWMutex
	flows map[Key]*Session
}

// Table is a sharded-lock map of flow key to session state.
type Table struct {
	shards [NumShards]*shard
}

// New returns an empty table with all shards initialized.
func New() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i] = &shard{flows: make(map[Key]*Session)}
	}
	return t
}

func (t *Table) shardFor(k Key) *shard {
	h := hashKey(k)
	return t.shards[h%NumShards]
}

func hashKey(k Key) uint32 {
	h := k.SrcIP*2654435761 + k.DstIP
	h = h*2654435761 + (uint32(k.SrcPort)<<16 | uint32(k.DstPort))
	h = h*2654435761 + uint32(k.Proto)
	return h
}

// Get returns the session for k, if one exists.
func (t *Table) Get(k Key) (*Session, bool) {
	s := t.shardFor(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.flows[k]
	return sess, ok
}

// GetOrCreate returns the existing session for k, or creates and stores a
// new one with the given attach epoch.
func (t *Table) GetOrCreate(k Key, epoch uint64) *Session {
	s := t.shardFor(k)

	s.mu.RLock()
	sess, ok := s.flows[k]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.flows[k]; ok {
		return sess
	}
	sess = &Session{LastSeen: time.Now(), AttachEpoch: epoch}
	s.flows[k] = sess
	return sess
}

// Touch updates a session's LastSeen timestamp.
func (t *Table) Touch(k Key) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.flows[k]; ok {
		sess.LastSeen = time.Now()
	}
}

// Delete removes a session.
func (t *Table) Delete(k Key) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, k)
}

// Len returns the total number of tracked flows across all shards.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.flows)
		s.mu.RUnlock()
	}
	return n
}

// Range calls fn for every tracked flow, shard by shard under that
// shard's read lock, stopping early if fn returns false. fn must not call
// back into the table, matching sync.Map.Range's reentrancy contract.
func (t *Table) Range(fn func(Key, *Session) bool) {
	for _, s := range t.shards {
		s.mu.RLock()
		for k, sess := range s.flows {
			if !fn(k, sess) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Sweep removes every session whose LastSeen is older than idleFor,
// returning the number evicted. Nothing in this module calls it on a
// schedule; the owner of the table runs it when it wants idle flows gone.
func (t *Table) Sweep(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)
	evicted := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for k, sess := range s.flows {
			if sess.LastSeen.Before(cutoff) {
				delete(s.flows, k)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}
