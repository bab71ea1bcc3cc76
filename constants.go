package goscrub

import "github.com/gamvros/goscrub/internal/constants"

// Re-exported tunable defaults and protocol limits, for callers that want
// them without reaching into internal/constants.
const (
	DefaultSegSize   = constants.DefaultSegSize
	DefaultRegSize   = constants.DefaultRegSize
	DefaultThreads   = constants.DefaultThreads
	DefaultVRProtect = constants.DefaultVRProtect
	DefaultVerbose   = constants.DefaultVerbose
	DefaultStrategy  = constants.DefaultStrategy
	DefaultPriority  = constants.DefaultPriority
	SectorSize       = constants.SectorSize
	MaxVerifySectors = constants.MaxVerifySectors
)
