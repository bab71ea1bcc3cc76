package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamvros/goscrub/internal/scsipt"
)

type fakeVerifier struct {
	mu    sync.Mutex
	calls []uint64 // counts observed per call
}

func (f *fakeVerifier) Verify(lba uint64, count uint16) (scsipt.VerifyOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, uint64(count))
	return scsipt.VerifyOutcome{Code: scsipt.VerifyGood}, nil
}

type fakeCounters struct {
	mu          sync.Mutex
	idleCount   int
	reqcount    int
	readErrs    int
	idleNotify  chan struct{}
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{idleNotify: make(chan struct{}, 16)}
}

func (f *fakeCounters) NotifyIdle() {
	f.mu.Lock()
	f.idleCount++
	f.mu.Unlock()
	select {
	case f.idleNotify <- struct{}{}:
	default:
	}
}

func (f *fakeCounters) RecordCompletion(code scsipt.VerifyCode, respUs int64, timed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqcount++
	if code != scsipt.VerifyGood {
		f.readErrs++
	}
}

func TestWorkerSplitsAtProtocolCeiling(t *testing.T) {
	slot := &Slot{}
	barrier := NewBarrier()
	verifier := &fakeVerifier{}
	counters := newFakeCounters()

	w := New(Config{ID: 0, Slot: slot, Barrier: barrier, Verifier: verifier, Counters: counters})
	go w.Run(false)

	<-counters.idleNotify // startup idle registration

	slot.LBA = 0
	slot.Count = 70000 // requires two VERIFY calls: 65535 + 4465
	slot.State = SlotBusy
	barrier.Release()

	select {
	case <-counters.idleNotify:
	case <-time.After(time.Second):
		t.Fatal("worker did not complete in time")
	}

	verifier.mu.Lock()
	defer verifier.mu.Unlock()
	require.Len(t, verifier.calls, 2)
	assert.Equal(t, uint64(65535), verifier.calls[0])
	assert.Equal(t, uint64(4465), verifier.calls[1])
	assert.Equal(t, SlotIdle, slot.State)

	barrier.Stop()
}

func TestWorkerRecordsFailureCount(t *testing.T) {
	slot := &Slot{}
	barrier := NewBarrier()
	counters := newFakeCounters()
	verifier := &erroringVerifier{}

	w := New(Config{ID: 1, Slot: slot, Barrier: barrier, Verifier: verifier, Counters: counters})
	go w.Run(false)
	<-counters.idleNotify

	slot.LBA = 10
	slot.Count = 100
	slot.State = SlotBusy
	barrier.Release()

	select {
	case <-counters.idleNotify:
	case <-time.After(time.Second):
		t.Fatal("worker did not complete in time")
	}

	counters.mu.Lock()
	defer counters.mu.Unlock()
	assert.Equal(t, 1, counters.reqcount)
	assert.Equal(t, 1, counters.readErrs)

	barrier.Stop()
}

type erroringVerifier struct{}

func (e *erroringVerifier) Verify(lba uint64, count uint16) (scsipt.VerifyOutcome, error) {
	return scsipt.VerifyOutcome{Code: scsipt.VerifyMediumHard}, nil
}
