// Package sysfs implements the scrubber's control surface: a mutable set
// of named attributes, each with a show/store pair, serialized by one
// mutex — the Go analogue of the original kernel module's sysfs
// attribute table and single sysfs_lock.
package sysfs

import (
	"github.com/gamvros/goscrub/internal/constants"
	"github.com/gamvros/goscrub/internal/priority"
	"github.com/gamvros/goscrub/internal/strategy"
)

// State is the operator's command channel to the controller.
type State string

const (
	StateOn    State = "on"
	StateOff   State = "off"
	StateAbort State = "abort"
)

// Tunables holds every live attribute of a ScrubberInstance. All fields
// are read/written only through Registry, which serializes access with
// one mutex — callers must never touch these fields directly.
type Tunables struct {
	ReqBound  uint64
	Strategy  strategy.Kind
	Priority  priority.Class
	SegSize   uint64 // KB, as shown; a round's snapshot doubles it into sectors
	RegSize   uint64 // KB, as shown; a round's snapshot doubles it into sectors
	State     State
	Threads   uint32
	DPO       bool
	VRProtect uint8
	Verbose   uint8
	SPoint    uint64
	SCount    uint64

	Timed      bool
	TTimeMs    uint64
	RespTimeUs uint64
	ReqCount   uint64
	DelayMs    uint64

	// IdleStampUnix is the Unix timestamp the most recent round's
	// RoundSnapshot was taken at, surfaced read-only for diagnostics.
	IdleStampUnix int64
}

// Default returns the tunable defaults from blk_init_scrub: sequential
// strategy, idle-check priority, one worker, DPO set, no protection, low
// verbosity, scrubbing the whole device from sector 0.
func Default() *Tunables {
	return &Tunables{
		Strategy:  strategy.Kind(constants.DefaultStrategy),
		Priority:  priority.Class(constants.DefaultPriority),
		SegSize:   constants.DefaultSegSize,
		RegSize:   constants.DefaultRegSize,
		State:     StateOff,
		Threads:   constants.DefaultThreads,
		DPO:       true,
		VRProtect: constants.DefaultVRProtect,
		Verbose:   constants.DefaultVerbose,
	}
}
