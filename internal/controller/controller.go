// Package controller implements the scrubber's control loop: it watches
// the sysfs state tunable, and on each transition to On runs exactly one
// round — snapshot, worker pool spin-up, dispatch, and teardown — before
// returning to idle and waiting again, per §4.2's round lifecycle.
package controller

import (
	"runtime"
	"sync"
	"time"

	"github.com/gamvros/goscrub/internal/dispatch"
	"github.com/gamvros/goscrub/internal/interfaces"
	"github.com/gamvros/goscrub/internal/logging"
	"github.com/gamvros/goscrub/internal/priority"
	"github.com/gamvros/goscrub/internal/scsipt"
	"github.com/gamvros/goscrub/internal/strategy"
	"github.com/gamvros/goscrub/internal/sysfs"
	"github.com/gamvros/goscrub/internal/worker"
)

// Controller owns the round-local coordination block for exactly one
// round at a time. It is shared by reference with workers and the
// dispatcher for the round's duration, and torn down before the
// controller returns to Idle.
type Controller struct {
	device   interfaces.Device
	registry *sysfs.Registry
	logger   *logging.Logger
	observer interfaces.Observer

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New creates a Controller over device, reading and writing tunables
// through registry. observer may be nil, in which case a NoOpObserver is
// used.
func New(device interfaces.Device, registry *sysfs.Registry, logger *logging.Logger, observer interfaces.Observer) *Controller {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Controller{
		device:   device,
		registry: registry,
		logger:   logger,
		observer: observer,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Wake nudges a controller parked in its idle wait to re-check state,
// called by the registry after a successful store(state, "on").
func (c *Controller) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Stop tells Run to return once any in-flight round has torn down, and
// blocks until it has.
func (c *Controller) Stop() {
	close(c.stop)
	<-c.done
}

// Run is the controller's main loop: Idle → Snapshot → Running → Draining
// → Idle, forever until Stop is called. It blocks and should be started
// in its own goroutine.
func (c *Controller) Run() {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if c.registry.CurrentState() != sysfs.StateOn {
			select {
			case <-c.wake:
				continue
			case <-c.stop:
				return
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}

		c.runRound()
	}
}

// runRound executes one full round per §4.2 steps 3-13: snapshot
// tunables, spin up the worker pool, warm up, walk the strategy via the
// dispatcher, and tear everything down before returning to Idle.
func (c *Controller) runRound() {
	capacity, err := c.device.CapacityInSectors()
	if err != nil {
		c.logger.Error("capacity query failed, aborting round", "error", err.Error())
		c.registry.Store("state", string(sysfs.StateOff))
		return
	}
	c.registry.SetCapacity(capacity)

	snap := newSnapshot(c.registry.Snapshot(), capacity)
	c.registry.ResetRoundCounters()
	c.registry.SetIdleStamp(snap.IdleStamp.Unix())

	invalidOpAborts := snap.Strategy == strategy.Fixed
	counters := NewRoundCounters(int(snap.Threads), invalidOpAborts)

	if snap.Priority == priority.IdleCheck {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		priority.Set(priority.IdleCheck, c.logger)
	}

	handles := make([]dispatch.Handle, snap.Threads)
	var wg sync.WaitGroup
	for i := range handles {
		slot := &worker.Slot{}
		barrier := worker.NewBarrier()
		handles[i] = dispatch.Handle{Slot: slot, Barrier: barrier}

		w := worker.New(worker.Config{
			ID:       i,
			Slot:     slot,
			Barrier:  barrier,
			Verifier: &snapshotVerifier{device: c.device, snap: snap, observer: c.observer},
			Counters: counters,
			Logger:   c.logger,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if snap.Priority == priority.IdleCheck {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				priority.Set(priority.IdleCheck, c.logger)
			}
			w.Run(snap.Timed)
		}()
	}

	c.warmup(snap)

	roundStop := make(chan struct{})
	d := dispatch.New(handles, counters, snap.DelayMs)

	var start time.Time
	if snap.Timed {
		start = time.Now()
	}

	emitted := uint64(0)
	strategy.Emit(snap.Strategy, snap.Bounds(), func(seg strategy.Segment) bool {
		select {
		case <-c.stop:
			return false
		default:
		}
		if c.registry.CurrentState() == sysfs.StateAbort {
			return false
		}
		if counters.AbortRequested() {
			return false
		}
		if !d.Dispatch(seg.LBA, seg.Count, roundStop) {
			return false
		}
		emitted++
		if snap.ReqBound > 0 && emitted > snap.ReqBound {
			return false
		}
		return true
	})
	close(roundStop)

	for i := range handles {
		handles[i].Barrier.Stop()
	}
	wg.Wait()

	var ttimeMs uint64
	if snap.Timed {
		ttimeMs = uint64(time.Since(start).Milliseconds())
	}
	reqCount := counters.ReqCount()
	avgRespUs := counters.AvgRespUs()
	c.registry.UpdateRoundStats(ttimeMs, avgRespUs, reqCount)
	c.observer.ObserveRoundComplete(reqCount, counters.ReadErrs(), ttimeMs, avgRespUs)

	// Whether the round ended by exhausting its bounds, by Abort, or by
	// an InvalidOp-triggered early stop, the instance returns to Idle.
	c.registry.Store("state", string(sysfs.StateOff))
}

// warmup issues one untracked VERIFY of segsize sectors at spoint+segsize
// (capped at the protocol ceiling), to prime the device's read cache
// before the round's first dispatched request — the original source's
// pre-round probe read. Failures are logged, never fatal.
func (c *Controller) warmup(snap RoundSnapshot) {
	lba := snap.SPoint + snap.SegSize
	if lba >= snap.Capacity {
		return
	}
	count := snap.SegSize
	if count > 65535 {
		count = 65535
	}
	o, err := c.device.Verify(lba, uint16(count), snap.VRProtect, snap.DPO)
	if err != nil {
		c.logger.Debug("warm-up verify failed, continuing", "lba", lba, "error", err.Error())
	} else if o.Code != scsipt.VerifyGood {
		c.logger.Debug("warm-up verify failed, continuing", "lba", lba, "category", o.Code.String())
	}
}

// snapshotVerifier adapts interfaces.Device plus a fixed RoundSnapshot's
// vrprotect/dpo into the worker.Verifier contract, and reports each
// completed verify to the observer.
type snapshotVerifier struct {
	device   interfaces.Device
	snap     RoundSnapshot
	observer interfaces.Observer
}

func (v *snapshotVerifier) Verify(lba uint64, count uint16) (scsipt.VerifyOutcome, error) {
	start := time.Now()
	o, err := v.device.Verify(lba, count, v.snap.VRProtect, v.snap.DPO)
	v.observer.ObserveVerify(lba, uint64(count), time.Since(start).Microseconds(), o.Code, o.InfoLBA)
	return o, err
}
