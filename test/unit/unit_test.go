//go:build !integration

// Package unit holds whole-module smoke tests that don't require a real
// SCSI pass-through device.
package unit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goscrub "github.com/gamvros/goscrub"
	"github.com/gamvros/goscrub/backend"
)

func TestScrubberInstanceRunsOneRoundOverMemDevice(t *testing.T) {
	dev := backend.NewMemDevice(1_000_000)
	inst := goscrub.New(dev)
	inst.Start()
	defer inst.Stop()

	require.NoError(t, inst.Store("segsize", "1000"))
	require.NoError(t, inst.Store("scount", "10000"))
	require.NoError(t, inst.Store("state", "on"))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := inst.Snapshot()
		if snap.State == "off" && snap.ReqCount > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	snap := inst.Snapshot()
	assert.Equal(t, "off", string(snap.State))
	assert.Greater(t, snap.ReqCount, uint64(0))

	metrics := inst.Metrics()
	require.NotNil(t, metrics)
	msnap := metrics.Snapshot()
	assert.Greater(t, msnap.VerifyCount, uint64(0))
}

func TestScrubberInstanceAbortStopsRoundEarly(t *testing.T) {
	dev := backend.NewMemDevice(10_000_000)
	inst := goscrub.New(dev)
	inst.Start()
	defer inst.Stop()

	require.NoError(t, inst.Store("segsize", "10"))
	require.NoError(t, inst.Store("delayms", "5"))
	require.NoError(t, inst.Store("state", "on"))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, inst.Store("state", "abort"))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if inst.Snapshot().State == "off" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, "off", string(inst.Snapshot().State))
}

func TestShowStoreRoundTrip(t *testing.T) {
	dev := backend.NewMemDevice(1_000)
	inst := goscrub.New(dev)

	out, err := inst.Show("strategy")
	require.NoError(t, err)
	require.NoError(t, inst.Store("strategy", "stag"))
	out2, err := inst.Show("strategy")
	require.NoError(t, err)
	assert.NotEqual(t, out, out2)
}
