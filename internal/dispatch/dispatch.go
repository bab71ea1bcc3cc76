// Package dispatch implements the per-round dispatcher: it waits for
// worker availability, applies the optional pacing delay, finds an idle
// worker slot round-robin, and hands it off via the worker's barrier.
package dispatch

import (
	"time"

	"github.com/gamvros/goscrub/internal/worker"
)

// Availability is the round's availability gate. Wait blocks until a
// worker has reported idle, atomically consuming one unit of
// availability, or returns false if stop fires first.
type Availability interface {
	Wait(stop <-chan struct{}) bool
}

// Handle pairs a worker's slot and barrier, the two pieces the dispatcher
// must touch to hand off a segment.
type Handle struct {
	Slot    *worker.Slot
	Barrier *worker.Barrier
}

// Dispatcher hands emitted segments to idle workers for one round.
type Dispatcher struct {
	handles      []Handle
	availability Availability
	delayMs      uint64
}

// New creates a Dispatcher over the round's worker handles.
func New(handles []Handle, availability Availability, delayMs uint64) *Dispatcher {
	return &Dispatcher{handles: handles, availability: availability, delayMs: delayMs}
}

// Dispatch hands one (lba, count) segment to an idle worker, per §4.4:
// wait for availability, decrement it, apply pacing delay, scan for an
// idle slot from index 0, assign it, and release its barrier. Returns
// false if stop fired while waiting (round teardown in progress).
func (d *Dispatcher) Dispatch(lba, count uint64, stop <-chan struct{}) bool {
	if !d.availability.Wait(stop) {
		return false
	}

	if d.delayMs > 0 {
		select {
		case <-time.After(time.Duration(d.delayMs) * time.Millisecond):
		case <-stop:
			return false
		}
	}

	for i := range d.handles {
		h := d.handles[i]
		if h.Slot.State != worker.SlotIdle {
			continue
		}
		h.Slot.LBA = lba
		h.Slot.Count = count
		h.Slot.State = worker.SlotBusy
		h.Barrier.Release()
		return true
	}

	// Availability reported a free worker but none was found idle: the
	// availability/slot invariant was violated upstream.
	return false
}
