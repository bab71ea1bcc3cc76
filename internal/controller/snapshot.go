package controller

import (
	"time"

	"github.com/gamvros/goscrub/internal/priority"
	"github.com/gamvros/goscrub/internal/strategy"
	"github.com/gamvros/goscrub/internal/sysfs"
)

// RoundSnapshot is an immutable copy of the instance's tunables, taken
// under the registry's mutex at round start (§4.2 step 3). Workers and
// the dispatcher read only from the snapshot during a round; tunable
// writes that land mid-round affect only the next round.
type RoundSnapshot struct {
	ReqBound  uint64
	Strategy  strategy.Kind
	Priority  priority.Class
	SegSize   uint64
	RegSize   uint64
	Threads   uint32
	DPO       bool
	VRProtect uint8
	Verbose   uint8
	SPoint    uint64
	SCount    uint64
	DelayMs   uint64
	Timed     bool

	// EffectiveEnd is resolved once capacity is known (step 5).
	EffectiveEnd uint64
	Capacity     uint64

	// IdleStamp is kept for diagnostic parity with the original
	// source's per-round idle timestamp; the idle-queue-empty gate it
	// fed is intentionally not implemented (§4.4 step 1 / REDESIGN
	// FLAGS). It's surfaced read-only via the registry's "idlestamp"
	// attribute (see Controller.runRound).
	IdleStamp time.Time
}

// newSnapshot builds a RoundSnapshot from the registry's current
// tunables, applying the doubling convention (step 4) and resolving the
// effective end of the round (step 5).
func newSnapshot(t sysfs.Tunables, capacity uint64) RoundSnapshot {
	s := RoundSnapshot{
		ReqBound:  t.ReqBound,
		Strategy:  t.Strategy,
		Priority:  t.Priority,
		SegSize:   t.SegSize * 2, // doubling convention, see design notes
		RegSize:   t.RegSize * 2,
		Threads:   t.Threads,
		DPO:       t.DPO,
		VRProtect: t.VRProtect,
		Verbose:   t.Verbose,
		SPoint:    t.SPoint,
		SCount:    t.SCount,
		DelayMs:   t.DelayMs,
		Timed:     t.Timed,
		Capacity:  capacity,
		IdleStamp: time.Now(),
	}

	if s.SCount == 0 || s.SPoint+s.SCount > capacity {
		s.EffectiveEnd = capacity
	} else {
		s.EffectiveEnd = s.SPoint + s.SCount
	}

	return s
}

// Bounds adapts the snapshot to the strategy package's Bounds shape.
func (s RoundSnapshot) Bounds() strategy.Bounds {
	return strategy.Bounds{
		SPoint:       s.SPoint,
		EffectiveEnd: s.EffectiveEnd,
		SegSize:      s.SegSize,
		RegSize:      s.RegSize,
		Capacity:     s.Capacity,
	}
}
