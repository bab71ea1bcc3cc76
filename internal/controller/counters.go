package controller

import (
	"sync/atomic"

	"github.com/gamvros/goscrub/internal/scsipt"
)

// RoundCounters is the round-local coordination block's shared counters:
// availability (a buffered channel, standing in for mutexavail), reqcount
// (sysfs_lock), read_errs (mutexerr), and cumulative response time
// (mutextime). It implements both worker.Counters and dispatch.Availability
// by duck typing, so dispatcher and workers share one source of truth
// without the two packages importing each other.
type RoundCounters struct {
	available       chan struct{}
	reqCount        atomic.Uint64
	readErrs        atomic.Uint64
	respTimeUs      atomic.Int64
	abortRequested  atomic.Bool
	invalidOpAborts bool
}

// NewRoundCounters creates a RoundCounters sized for the given worker
// count. No worker is marked available until it registers via
// NotifyIdle, mirroring the original source's per-thread startup
// registration. invalidOpAborts should be true when the round is running
// the Fixed strategy (§4.6's InvalidOp-terminal-for-Fixed rule).
func NewRoundCounters(threads int, invalidOpAborts bool) *RoundCounters {
	return &RoundCounters{available: make(chan struct{}, threads), invalidOpAborts: invalidOpAborts}
}

// NotifyIdle marks one worker available and wakes anyone waiting in
// Wait. Called by a worker at startup and after each completed segment.
func (c *RoundCounters) NotifyIdle() {
	select {
	case c.available <- struct{}{}:
	default:
	}
}

// Wait blocks until a worker is available, consuming it, or returns false
// if stop fires first.
func (c *RoundCounters) Wait(stop <-chan struct{}) bool {
	select {
	case <-c.available:
		return true
	case <-stop:
		return false
	}
}

// RecordCompletion accounts for one completed sub-request. If strategy is
// Fixed and code is VerifyInvalidOp, the round is marked for abort — the
// VERIFY(10) command isn't supported at all, per §4.6's failure
// semantics.
func (c *RoundCounters) RecordCompletion(code scsipt.VerifyCode, respUs int64, timed bool) {
	c.reqCount.Add(1)
	if code != scsipt.VerifyGood {
		c.readErrs.Add(1)
	}
	if timed {
		c.respTimeUs.Add(respUs)
	}
	if code == scsipt.VerifyInvalidOp && c.invalidOpAborts {
		c.abortRequested.Store(true)
	}
}

// AbortRequested reports whether a worker observed a condition that
// should end the round early (currently: InvalidOp under the Fixed
// strategy).
func (c *RoundCounters) AbortRequested() bool {
	return c.abortRequested.Load()
}

// ReqCount returns the current request count.
func (c *RoundCounters) ReqCount() uint64 { return c.reqCount.Load() }

// ReadErrs returns the current error count.
func (c *RoundCounters) ReadErrs() uint64 { return c.readErrs.Load() }

// AvgRespUs returns the average response time in microseconds across all
// completed sub-requests, or 0 if none were recorded.
func (c *RoundCounters) AvgRespUs() uint64 {
	n := c.reqCount.Load()
	if n == 0 {
		return 0
	}
	return uint64(c.respTimeUs.Load()) / n
}
