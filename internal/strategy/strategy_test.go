package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamvros/goscrub/internal/constants"
)

func collect(kind Kind, b Bounds) []Segment {
	var segs []Segment
	Emit(kind, b, func(s Segment) bool {
		segs = append(segs, s)
		return true
	})
	return segs
}

func TestSequentialWholeDevice(t *testing.T) {
	b := Bounds{SPoint: 0, EffectiveEnd: 1000, SegSize: 300, Capacity: 1000}
	segs := collect(Sequential, b)

	require.Len(t, segs, 4)
	assert.Equal(t, Segment{LBA: 0, Count: 300}, segs[0])
	assert.Equal(t, Segment{LBA: 300, Count: 300}, segs[1])
	assert.Equal(t, Segment{LBA: 600, Count: 300}, segs[2])
	assert.Equal(t, Segment{LBA: 900, Count: 100}, segs[3])
}

func TestSequentialBoundedWindow(t *testing.T) {
	b := Bounds{SPoint: 100, EffectiveEnd: 600, SegSize: 200, Capacity: 1000}
	segs := collect(Sequential, b)

	require.Len(t, segs, 3)
	assert.Equal(t, Segment{LBA: 100, Count: 200}, segs[0])
	assert.Equal(t, Segment{LBA: 300, Count: 200}, segs[1])
	assert.Equal(t, Segment{LBA: 500, Count: 100}, segs[2])
}

func TestStaggeredInterleavesAcrossRegions(t *testing.T) {
	b := Bounds{SPoint: 0, EffectiveEnd: 1200, SegSize: 100, RegSize: 400, Capacity: 1200}
	segs := collect(Staggered, b)

	// 3 regions of 400, 4 segments of 100 each: segment offset varies
	// slowest-changing in the outer loop, region index in the inner loop.
	require.Len(t, segs, 12)
	assert.Equal(t, Segment{LBA: 0, Count: 100}, segs[0])
	assert.Equal(t, Segment{LBA: 400, Count: 100}, segs[1])
	assert.Equal(t, Segment{LBA: 800, Count: 100}, segs[2])
	assert.Equal(t, Segment{LBA: 100, Count: 100}, segs[3])
	assert.Equal(t, Segment{LBA: 500, Count: 100}, segs[4])
	assert.Equal(t, Segment{LBA: 900, Count: 100}, segs[5])
	assert.Equal(t, Segment{LBA: 1100, Count: 100}, segs[11])
}

func TestFixedBelowMinCapacityEmitsNothing(t *testing.T) {
	b := Bounds{SPoint: 0, EffectiveEnd: 1000, SegSize: 100, Capacity: 1000}
	segs := collect(Fixed, b)
	assert.Empty(t, segs)
}

func TestFixedAlternatesLowAndHighOffsets(t *testing.T) {
	capacity := uint64(constants.FixedStrategyMinCapacity)
	b := Bounds{SPoint: 0, EffectiveEnd: capacity, SegSize: 1000, Capacity: capacity}
	segs := collect(Fixed, b)

	require.Len(t, segs, 50)
	assert.Equal(t, uint64(0), segs[0].LBA)
	assert.Equal(t, uint64(40_000_000), segs[1].LBA)
	assert.Equal(t, uint64(400_000), segs[2].LBA)
	assert.Equal(t, uint64(39_600_000), segs[3].LBA)
}

func TestEmitStopsWhenYieldReturnsFalse(t *testing.T) {
	b := Bounds{SPoint: 0, EffectiveEnd: 1000, SegSize: 100, Capacity: 1000}
	count := 0
	Emit(Sequential, b, func(s Segment) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}
