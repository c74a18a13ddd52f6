package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPartitionsDisjointRanges(t *testing.T) {
	const frameSize = 2048
	const nrFrames = 4

	p0 := New(frameSize, 0, nrFrames)
	p1 := New(frameSize, 1, nrFrames)

	seen0 := map[uint64]bool{}
	for {
		v, ok := p0.Get()
		if !ok {
			break
		}
		seen0[v] = true
	}
	for {
		v, ok := p1.Get()
		if !ok {
			break
		}
		assert.False(t, seen0[v], "thread 1 frame %d overlaps thread 0's range", v)
	}
}

func TestGetPutNoDoubleIssue(t *testing.T) {
	p := New(4096, 0, 4)

	issued := map[uint64]bool{}
	for i := 0; i < 4; i++ {
		v, ok := p.Get()
		require.True(t, ok)
		require.False(t, issued[v], "frame %d issued twice", v)
		issued[v] = true
	}

	_, ok := p.Get()
	assert.False(t, ok, "pool should be exhausted")

	for v := range issued {
		assert.True(t, p.Put(v))
	}
	assert.Equal(t, uint32(4), p.Len())
}

func TestPutBeyondCapacityFails(t *testing.T) {
	p := New(4096, 0, 2)
	v, _ := p.Get()
	assert.True(t, p.Put(v))
	assert.False(t, p.Put(999), "pool is already full, extra Put must fail")
}
