package goscrub

import (
	"sync/atomic"
	"time"

	"github.com/gamvros/goscrub/internal/interfaces"
	"github.com/gamvros/goscrub/internal/scsipt"
)

// LatencyBuckets defines the verify-latency histogram buckets in
// nanoseconds, covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics accumulates verify and round statistics across the lifetime of
// a ScrubberInstance. Safe for concurrent use.
type Metrics struct {
	VerifyCount   atomic.Uint64
	VerifyErrors  atomic.Uint64
	SectorsRead   atomic.Uint64

	// Per sense-category counters, indexed by scsipt.VerifyCode.
	byCode [10]atomic.Uint64

	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	RoundsCompleted atomic.Uint64
	TotalTTimeMs    atomic.Uint64

	// InfoLBACount and LastInfoLBA track the MediumHardWithInfo signal:
	// the sense-reported bad sector is the whole point of that category
	// (§4.6/§7), so it gets its own counters rather than being folded
	// into VerifyErrors.
	InfoLBACount atomic.Uint64
	LastInfoLBA  atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new Metrics, stamped with the current time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// ObserveVerify implements interfaces.Observer: records one completed
// VERIFY(10) sub-request. infoLBA is only meaningful when code is
// VerifyMediumHardWithInfo.
func (m *Metrics) ObserveVerify(lba uint64, count uint64, durationUs int64, code scsipt.VerifyCode, infoLBA uint64) {
	m.VerifyCount.Add(1)
	m.SectorsRead.Add(count)
	if code != scsipt.VerifyGood {
		m.VerifyErrors.Add(1)
	}
	if int(code) >= 0 && int(code) < len(m.byCode) {
		m.byCode[code].Add(1)
	}
	if code == scsipt.VerifyMediumHardWithInfo {
		m.InfoLBACount.Add(1)
		m.LastInfoLBA.Store(infoLBA)
	}

	latencyNs := uint64(durationUs) * 1000
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// ObserveRoundComplete implements interfaces.Observer: records the
// outcome of one completed scrubbing round.
func (m *Metrics) ObserveRoundComplete(reqCount, readErrs uint64, ttimeMs, avgRespUs uint64) {
	m.RoundsCompleted.Add(1)
	m.TotalTTimeMs.Add(ttimeMs)
}

// Stop marks the metrics instance as stopped (no more observations
// expected), freezing the end point Snapshot uses for UptimeNs.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	VerifyCount  uint64
	VerifyErrors uint64
	SectorsRead  uint64
	ErrorRate    float64

	CodeCounts map[string]uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyHistogram [numLatencyBuckets]uint64

	RoundsCompleted uint64
	TotalTTimeMs    uint64

	InfoLBACount uint64
	LastInfoLBA  uint64
}

// Snapshot returns a consistent-enough point-in-time view of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		VerifyCount:     m.VerifyCount.Load(),
		VerifyErrors:    m.VerifyErrors.Load(),
		SectorsRead:     m.SectorsRead.Load(),
		RoundsCompleted: m.RoundsCompleted.Load(),
		TotalTTimeMs:    m.TotalTTimeMs.Load(),
		InfoLBACount:    m.InfoLBACount.Load(),
		LastInfoLBA:     m.LastInfoLBA.Load(),
	}

	if snap.VerifyCount > 0 {
		snap.ErrorRate = float64(snap.VerifyErrors) / float64(snap.VerifyCount) * 100.0
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / snap.VerifyCount
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	snap.CodeCounts = make(map[string]uint64, len(m.byCode))
	for code := range m.byCode {
		if n := m.byCode[code].Load(); n > 0 {
			snap.CodeCounts[scsipt.VerifyCode(code).String()] = n
		}
	}

	for i := range m.LatencyBuckets {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	return snap
}

// Reset zeroes every counter, for reuse across test cases.
func (m *Metrics) Reset() {
	m.VerifyCount.Store(0)
	m.VerifyErrors.Store(0)
	m.SectorsRead.Store(0)
	for i := range m.byCode {
		m.byCode[i].Store(0)
	}
	m.TotalLatencyNs.Store(0)
	for i := range m.LatencyBuckets {
		m.LatencyBuckets[i].Store(0)
	}
	m.RoundsCompleted.Store(0)
	m.TotalTTimeMs.Store(0)
	m.InfoLBACount.Store(0)
	m.LastInfoLBA.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Compile-time interface check: *Metrics satisfies interfaces.Observer.
var _ interfaces.Observer = (*Metrics)(nil)
