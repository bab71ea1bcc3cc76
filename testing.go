package goscrub

import (
	"sync"

	"github.com/gamvros/goscrub/internal/interfaces"
	"github.com/gamvros/goscrub/internal/scsipt"
)

// MockDevice is a mock implementation of interfaces.Device for testing
// code that drives a ScrubberInstance without real hardware. It tracks
// every Verify call and can be scripted to fail for specific starting LBAs.
type MockDevice struct {
	mu       sync.Mutex
	capacity uint64
	closed   bool

	verifyCalls []MockVerifyCall
	failures    map[uint64]scsipt.VerifyCode // lba -> forced outcome
}

// MockVerifyCall records one call to MockDevice.Verify.
type MockVerifyCall struct {
	LBA       uint64
	Count     uint16
	VRProtect uint8
	DPO       bool
}

// NewMockDevice creates a mock device reporting the given sector count.
func NewMockDevice(capacity uint64) *MockDevice {
	return &MockDevice{capacity: capacity, failures: make(map[uint64]scsipt.VerifyCode)}
}

// CapacityInSectors implements interfaces.Device.
func (m *MockDevice) CapacityInSectors() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, NewError("capacity", ErrCodeDeviceNotFound, "device closed")
	}
	return m.capacity, nil
}

// Verify implements interfaces.Device. If FailAt scripted a code for lba,
// that code is returned instead of VerifyGood.
func (m *MockDevice) Verify(lba uint64, count uint16, vrprotect uint8, dpo bool) (scsipt.VerifyOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return scsipt.VerifyOutcome{}, NewError("verify", ErrCodeDeviceNotFound, "device closed")
	}

	m.verifyCalls = append(m.verifyCalls, MockVerifyCall{LBA: lba, Count: count, VRProtect: vrprotect, DPO: dpo})

	if code, ok := m.failures[lba]; ok {
		return scsipt.VerifyOutcome{Code: code, InfoLBA: lba}, nil
	}
	return scsipt.VerifyOutcome{Code: scsipt.VerifyGood}, nil
}

// Close implements interfaces.Device.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FailAt scripts Verify to report code whenever called with this exact
// starting lba.
func (m *MockDevice) FailAt(lba uint64, code scsipt.VerifyCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[lba] = code
}

// Calls returns a copy of every Verify call observed so far.
func (m *MockDevice) Calls() []MockVerifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockVerifyCall, len(m.verifyCalls))
	copy(out, m.verifyCalls)
	return out
}

// CallCount returns the number of Verify calls observed so far.
func (m *MockDevice) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.verifyCalls)
}

// IsClosed reports whether Close has been called.
func (m *MockDevice) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset clears all call history and scripted failures, keeping capacity.
func (m *MockDevice) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyCalls = nil
	m.failures = make(map[uint64]scsipt.VerifyCode)
}

var _ interfaces.Device = (*MockDevice)(nil)
