package goscrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamvros/goscrub/internal/scsipt"
)

func TestMetricsObserveVerifyCountsGoodAndErrors(t *testing.T) {
	m := NewMetrics()

	m.ObserveVerify(0, 128, 100, scsipt.VerifyGood, 0)
	m.ObserveVerify(128, 128, 200, scsipt.VerifyMediumHard, 0)
	m.ObserveVerify(256, 128, 150, scsipt.VerifyGood, 0)

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.VerifyCount)
	assert.Equal(t, uint64(1), snap.VerifyErrors)
	assert.Equal(t, uint64(384), snap.SectorsRead)
}

func TestMetricsErrorRate(t *testing.T) {
	m := NewMetrics()

	m.ObserveVerify(0, 1, 10, scsipt.VerifyGood, 0)
	m.ObserveVerify(1, 1, 10, scsipt.VerifyGood, 0)
	m.ObserveVerify(2, 1, 10, scsipt.VerifyMediumHard, 0)
	m.ObserveVerify(3, 1, 10, scsipt.VerifyMediumHard, 0)

	snap := m.Snapshot()
	assert.InDelta(t, 50.0, snap.ErrorRate, 0.001)
}

func TestMetricsCodeCounts(t *testing.T) {
	m := NewMetrics()

	m.ObserveVerify(0, 1, 10, scsipt.VerifyGood, 0)
	m.ObserveVerify(1, 1, 10, scsipt.VerifyNotReady, 0)
	m.ObserveVerify(2, 1, 10, scsipt.VerifyNotReady, 0)

	snap := m.Snapshot()
	require.Contains(t, snap.CodeCounts, scsipt.VerifyGood.String())
	require.Contains(t, snap.CodeCounts, scsipt.VerifyNotReady.String())
	assert.Equal(t, uint64(1), snap.CodeCounts[scsipt.VerifyGood.String()])
	assert.Equal(t, uint64(2), snap.CodeCounts[scsipt.VerifyNotReady.String()])
}

func TestMetricsLatencyHistogramPopulates(t *testing.T) {
	m := NewMetrics()

	m.ObserveVerify(0, 1, 1, scsipt.VerifyGood, 0)      // ~1us
	m.ObserveVerify(0, 1, 20_000, scsipt.VerifyGood, 0) // ~20ms

	snap := m.Snapshot()
	var total uint64
	for _, n := range snap.LatencyHistogram {
		total += n
	}
	assert.Greater(t, total, uint64(0))
}

func TestMetricsAverageLatency(t *testing.T) {
	m := NewMetrics()

	m.ObserveVerify(0, 1, 100, scsipt.VerifyGood, 0)
	m.ObserveVerify(0, 1, 300, scsipt.VerifyGood, 0)

	snap := m.Snapshot()
	assert.Equal(t, uint64(200_000), snap.AvgLatencyNs)
}

func TestMetricsObserveVerifyRecordsInfoLBA(t *testing.T) {
	m := NewMetrics()

	m.ObserveVerify(0, 1, 10, scsipt.VerifyMediumHard, 0)
	m.ObserveVerify(100, 1, 10, scsipt.VerifyMediumHardWithInfo, 4096)
	m.ObserveVerify(200, 1, 10, scsipt.VerifyMediumHardWithInfo, 8192)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.InfoLBACount)
	assert.Equal(t, uint64(8192), snap.LastInfoLBA)
}

func TestMetricsObserveRoundComplete(t *testing.T) {
	m := NewMetrics()

	m.ObserveRoundComplete(500, 2, 1200, 150)
	m.ObserveRoundComplete(300, 0, 800, 90)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RoundsCompleted)
	assert.Equal(t, uint64(2000), snap.TotalTTimeMs)
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.UptimeNs, uint64(0))

	m.Stop()
	snap2 := m.Snapshot()
	assert.GreaterOrEqual(t, snap2.UptimeNs, uint64(0))
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.ObserveVerify(0, 1, 10, scsipt.VerifyMediumHardWithInfo, 4096)
	m.ObserveRoundComplete(10, 1, 100, 50)

	m.Reset()

	snap := m.Snapshot()
	assert.Zero(t, snap.VerifyCount)
	assert.Zero(t, snap.VerifyErrors)
	assert.Zero(t, snap.RoundsCompleted)
	assert.Zero(t, snap.InfoLBACount)
	assert.Zero(t, snap.LastInfoLBA)
	assert.Empty(t, snap.CodeCounts)
}

func TestMetricsImplementsObserver(t *testing.T) {
	m := NewMetrics()
	var observer interface {
		ObserveVerify(lba uint64, count uint64, durationUs int64, code scsipt.VerifyCode, infoLBA uint64)
		ObserveRoundComplete(reqCount, readErrs, ttimeMs, avgRespUs uint64)
	} = m
	observer.ObserveVerify(0, 1, 1, scsipt.VerifyGood, 0)
	assert.Equal(t, uint64(1), m.Snapshot().VerifyCount)
}
