package scsipt

import "github.com/gamvros/goscrub/internal/constants"

// Device adapts a Channel to the block-device contract (§6): fixed
// timeouts, no direction/sense-buffer plumbing leaking to callers.
type Device struct {
	ch *Channel
}

// OpenDevice opens path as a scrubbing target.
func OpenDevice(path string) (*Device, error) {
	ch, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Device{ch: ch}, nil
}

// CapacityInSectors reports the device's sector count via READ
// CAPACITY(16).
func (d *Device) CapacityInSectors() (uint64, error) {
	return d.ch.CapacityInSectors(uint32(constants.VerifyTimeout.Milliseconds()))
}

// Verify issues one VERIFY(10) call.
func (d *Device) Verify(lba uint64, count uint16, vrprotect uint8, dpo bool) (VerifyOutcome, error) {
	return d.ch.Verify10(uint32(lba), count, vrprotect, dpo)
}

// Close releases the underlying channel.
func (d *Device) Close() error {
	return d.ch.Close()
}
