package sessiontable

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(n uint32) Key {
	return Key{SrcIP: n, DstIP: n + 1, SrcPort: uint16(n), DstPort: uint16(n + 1), Proto: 6}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	tbl := New()
	k := testKey(1)

	s1 := tbl.GetOrCreate(k, 10)
	s2 := tbl.GetOrCreate(k, 99)

	assert.Same(t, s1, s2)
	assert.EqualValues(t, 10, s1.AttachEpoch)
	assert.Equal(t, 1, tbl.Len())
}

func TestGetMissingReturnsFalse(t *testing.T) {
	tbl := New()
	_, ok := tbl.Get(testKey(1))
	assert.False(t, ok)
}

func TestDeleteRemovesSession(t *testing.T) {
	tbl := New()
	k := testKey(2)
	tbl.GetOrCreate(k, 1)
	require.Equal(t, 1, tbl.Len())

	tbl.Delete(k)
	assert.Equal(t, 0, tbl.Len())
}

func TestSweepEvictsOnlyIdleSessions(t *testing.T) {
	tbl := New()
	fresh := testKey(3)
	stale := testKey(4)

	tbl.GetOrCreate(fresh, 1)
	sess := tbl.GetOrCreate(stale, 1)
	sess.LastSeen = time.Now().Add(-time.Hour)

	evicted := tbl.Sweep(time.Minute)

	assert.Equal(t, 1, evicted)
	_, ok := tbl.Get(fresh)
	assert.True(t, ok)
	_, ok = tbl.Get(stale)
	assert.False(t, ok)
}

func TestRangeVisitsEveryEntry(t *testing.T) {
	tbl := New()
	keys := []Key{testKey(10), testKey(20), testKey(30)}
	for _, k := range keys {
		tbl.GetOrCreate(k, 1)
	}

	seen := make(map[Key]bool)
	tbl.Range(func(k Key, sess *Session) bool {
		seen[k] = true
		return true
	})

	assert.Len(t, seen, len(keys))
	for _, k := range keys {
		assert.True(t, seen[k])
	}
}

func TestRangeStopsEarlyWhenFnReturnsFalse(t *testing.T) {
	tbl := New()
	tbl.GetOrCreate(testKey(1), 1)
	tbl.GetOrCreate(testKey(2), 1)

	visited := 0
	tbl.Range(func(k Key, sess *Session) bool {
		visited++
		return false
	})

	assert.Equal(t, 1, visited)
}

func TestConcurrentGetOrCreateNoRace(t *testing.T) {
	tbl := New()
	k := testKey(5)

	var wg sync.WaitGroup
	results := make([]*Session, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tbl.GetOrCreate(k, uint64(i))
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		assert.Same(t, results[0], results[i])
	}
}
