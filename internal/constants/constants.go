// Package constants holds the scrubber's default tunable values and
// protocol-level limits.
package constants

import "time"

// Default tunable values, matching blk_init_scrub's defaults in the
// original kernel module.
const (
	// DefaultSegSize is the default segment size in KB, the unit the
	// segsize attribute shows; each round doubles it into sectors.
	DefaultSegSize = 2048

	// DefaultRegSize is the default region size in KB, the unit the
	// regsize attribute shows; each round doubles it into sectors.
	DefaultRegSize = 131072

	// DefaultThreads is the default worker count for a round.
	DefaultThreads = 1

	// DefaultVRProtect is the default VERIFY protection field value.
	DefaultVRProtect = 0

	// DefaultVerbose is the default verbosity level (0-3).
	DefaultVerbose = 1

	// DefaultStrategy is the default traversal strategy.
	DefaultStrategy = "seql"

	// DefaultPriority is the default scheduling priority class.
	DefaultPriority = "idlechk"

	// SectorSize is the fixed sector size assumption for the block
	// device contract (§6): 512 bytes.
	SectorSize = 512
)

// Protocol-level limits.
const (
	// MaxVerifySectors is the SCSI VERIFY(10) request-size ceiling: a
	// 16-bit count field, so at most 65535 sectors per pass-through call.
	MaxVerifySectors = 65535

	// VerifyTimeout is the pass-through timeout for a single VERIFY(10)
	// call.
	VerifyTimeout = 60 * time.Second

	// SenseBufferLen is the sense buffer size submitted with every
	// pass-through command.
	SenseBufferLen = 32

	// CDBLen is the VERIFY(10) command descriptor block length.
	CDBLen = 10
)

// FixedStrategyMinCapacity is the minimum device capacity (in sectors)
// required to run the Fixed diagnostic strategy (20GB at 512B sectors).
const FixedStrategyMinCapacity = 40_000_001

// FixedStrategySegments is the number of segments the Fixed strategy
// emits.
const FixedStrategySegments = 50

// FixedStrategyStride is the sector stride between alternating Fixed
// strategy positions.
const FixedStrategyStride = 400_000
