package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPSCPushPopFIFO(t *testing.T) {
	r := NewSPSC[int](4)

	require.True(t, r.TryPush(1))
	require.True(t, r.TryPush(2))
	require.True(t, r.TryPush(3))

	v, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.TryPop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestSPSCFullFailsCleanly(t *testing.T) {
	r := NewSPSC[int](2)
	require.True(t, r.TryPush(1))
	require.True(t, r.TryPush(2))
	assert.False(t, r.TryPush(3))
	assert.Equal(t, uint32(2), r.Len())

	v, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, r.TryPush(3))
}

func TestSPSCEmptyPopFails(t *testing.T) {
	r := NewSPSC[int](4)
	_, ok := r.TryPop()
	assert.False(t, ok)
}

func TestSPSCPeekIsNonDestructive(t *testing.T) {
	r := NewSPSC[int](8)
	require.True(t, r.TryPush(10))
	require.True(t, r.TryPush(20))
	require.True(t, r.TryPush(30))

	peeked := r.Peek(2)
	assert.Equal(t, []int{10, 20}, peeked)
	assert.Equal(t, uint32(3), r.Len(), "peek must not consume")

	r.Release(2)
	assert.Equal(t, uint32(1), r.Len())

	v, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, 30, v)
}

func TestSPSCReserveSubmit(t *testing.T) {
	r := NewSPSC[int](4)
	base, ok := r.Reserve(2)
	require.True(t, ok)
	*r.At(base) = 100
	*r.At(base + 1) = 200
	r.Submit(base, 2)

	assert.Equal(t, uint32(2), r.Len())
	v, _ := r.TryPop()
	assert.Equal(t, 100, v)
}

func TestMPSCConcurrentProducers(t *testing.T) {
	r := NewMPSC[int](1024)
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !r.TryPush(base*perProducer + i) {
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < producers*perProducer; i++ {
		v, ok := r.TryPop()
		require.True(t, ok)
		assert.False(t, seen[v], "duplicate value popped: %d", v)
		seen[v] = true
	}
	_, ok := r.TryPop()
	assert.False(t, ok)
}

func TestMPSCFullFailsWithoutBlocking(t *testing.T) {
	r := NewMPSC[int](2)
	require.True(t, r.TryPush(1))
	require.True(t, r.TryPush(2))
	assert.False(t, r.TryPush(3))
}
