// Package worker implements the scrubber's worker pool: one goroutine per
// worker slot, parked on a Barrier until the dispatcher hands it a
// segment, splitting that segment into sub-requests at the SCSI protocol's
// 65535-sector ceiling.
package worker

import (
	"time"

	"github.com/gamvros/goscrub/internal/constants"
	"github.com/gamvros/goscrub/internal/logging"
	"github.com/gamvros/goscrub/internal/scsipt"
)

// SlotState is a worker slot's coarse state, written by the dispatcher and
// read by the worker after the barrier release establishes the
// happens-before edge.
type SlotState int32

const (
	SlotIdle SlotState = iota
	SlotBusy
)

// Slot is one worker's request payload: the dispatcher writes LBA/Count
// before releasing the barrier; the worker reads them after acquiring it.
type Slot struct {
	State SlotState
	LBA   uint64
	Count uint64
}

// Verifier issues one SCSI VERIFY(10) call for up to
// constants.MaxVerifySectors sectors.
type Verifier interface {
	Verify(lba uint64, count uint16) (scsipt.VerifyOutcome, error)
}

// Counters receives the worker's completion reports. Implementations must
// be safe for concurrent use by multiple workers, mirroring the
// mutexavail/mutexerr/mutextime/sysfs_lock split of the original source.
type Counters interface {
	// NotifyIdle increments the availability count and wakes the
	// controller, called both at worker start and after each finished
	// segment.
	NotifyIdle()
	// RecordCompletion accounts for one completed sub-request:
	// increments reqcount always, read_errs if code indicates failure,
	// and adds respUs to the cumulative response time if timed.
	RecordCompletion(code scsipt.VerifyCode, respUs int64, timed bool)
}

// Config configures one Worker.
type Config struct {
	ID       int
	Slot     *Slot
	Barrier  *Barrier
	Verifier Verifier
	Counters Counters
	Logger   *logging.Logger
}

// Worker runs one slot's park/execute loop.
type Worker struct {
	cfg Config
}

// New creates a Worker from the given configuration.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg}
}

// Run executes the worker's lifetime: register idle, then repeatedly park
// on the barrier and execute whatever the dispatcher assigned, until the
// barrier is stopped. Run blocks and should be started in its own
// goroutine.
func (w *Worker) Run(timed bool) {
	w.cfg.Counters.NotifyIdle()

	for {
		if !w.cfg.Barrier.Wait() {
			return
		}
		if w.cfg.Slot.State != SlotBusy {
			continue
		}
		w.execute(timed)
	}
}

// execute runs the assigned (lba, count) request, splitting it into
// sub-requests no larger than the protocol ceiling. Each sub-request
// mutates a local cursor, not a shared one — the original source mutated
// a single global lba across all workers, corrupting concurrent rounds;
// see the worker-pool rationale in the design notes for why that's wrong.
func (w *Worker) execute(timed bool) {
	pos := w.cfg.Slot.LBA
	count := w.cfg.Slot.Count

	for count > 0 {
		num := count
		if num > constants.MaxVerifySectors {
			num = constants.MaxVerifySectors
		}

		var start time.Time
		if timed {
			start = time.Now()
		}

		outcome, err := w.cfg.Verifier.Verify(pos, uint16(num))

		var respUs int64
		if timed {
			respUs = time.Since(start).Microseconds()
		}

		code := outcome.Code
		if err != nil {
			code = scsipt.VerifyOther
		}
		w.cfg.Counters.RecordCompletion(code, respUs, timed)

		if w.cfg.Logger != nil {
			if code == scsipt.VerifyMediumHardWithInfo {
				w.cfg.Logger.Warn("verify failed", "worker", w.cfg.ID, "lba", pos, "count", num, "category", code.String(), "info_lba", outcome.InfoLBA)
			} else if code != scsipt.VerifyGood {
				w.cfg.Logger.Warn("verify failed", "worker", w.cfg.ID, "lba", pos, "count", num, "category", code.String())
			} else {
				w.cfg.Logger.Debug("verify ok", "worker", w.cfg.ID, "lba", pos, "count", num)
			}
		}

		count -= num
		pos += num
	}

	w.cfg.Slot.State = SlotIdle
	w.cfg.Counters.NotifyIdle()
}
