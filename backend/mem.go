// Package backend provides a loopback device backend for goscrub: a
// RAM-resident stand-in for a real SCSI device, useful for exercising a
// ScrubberInstance without privileged pass-through access.
package backend

import (
	"fmt"
	"sync"

	"github.com/gamvros/goscrub/internal/constants"
	"github.com/gamvros/goscrub/internal/scsipt"
)

// ShardSize is the number of sectors covered by one shard's lock. This
// mirrors the RAM-backend sharding idiom, repurposed here to let
// concurrent workers VERIFY disjoint regions of the loopback device
// without contending on a single mutex.
const ShardSize = 128 // sectors (64KB at 512-byte sectors)

// MemDevice is a RAM-resident interfaces.Device: it has a fixed sector
// count and always reports VerifyGood, unless a sector range has been
// scripted to fail via FailRange. It never actually reads or writes
// sector content — VERIFY(10) never transfers data either.
type MemDevice struct {
	sectors uint64
	shards  []sync.RWMutex
	closed  bool

	mu    sync.Mutex // guards failures and closed
	fails []failRange
}

type failRange struct {
	start, end uint64 // [start, end)
	code       scsipt.VerifyCode
}

// NewMemDevice creates a loopback device with the given sector count.
func NewMemDevice(sectors uint64) *MemDevice {
	numShards := (sectors + ShardSize - 1) / ShardSize
	if numShards == 0 {
		numShards = 1
	}
	return &MemDevice{
		sectors: sectors,
		shards:  make([]sync.RWMutex, numShards),
	}
}

func (d *MemDevice) shardRange(lba, count uint64) (start, end int) {
	start = int(lba / ShardSize)
	last := lba + count - 1
	end = int(last / ShardSize)
	if end >= len(d.shards) {
		end = len(d.shards) - 1
	}
	return start, end
}

// CapacityInSectors implements interfaces.Device.
func (d *MemDevice) CapacityInSectors() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, fmt.Errorf("backend: device closed")
	}
	return d.sectors, nil
}

// Verify implements interfaces.Device. It locks the shards spanning
// [lba, lba+count) — to model the exclusion a real device's controller
// would serialize on — then checks whether the range falls in a
// scripted failure window.
func (d *MemDevice) Verify(lba uint64, count uint16, vrprotect uint8, dpo bool) (scsipt.VerifyOutcome, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return scsipt.VerifyOutcome{}, fmt.Errorf("backend: device closed")
	}
	if lba+uint64(count) > d.sectors {
		d.mu.Unlock()
		return scsipt.VerifyOutcome{}, fmt.Errorf("backend: verify past end of device")
	}
	fails := d.fails
	d.mu.Unlock()

	startShard, endShard := d.shardRange(lba, uint64(count))
	for i := startShard; i <= endShard; i++ {
		d.shards[i].Lock()
	}
	defer func() {
		for i := startShard; i <= endShard; i++ {
			d.shards[i].Unlock()
		}
	}()

	for _, f := range fails {
		if lba >= f.start && lba < f.end {
			return scsipt.VerifyOutcome{Code: f.code, InfoLBA: lba}, nil
		}
	}
	return scsipt.VerifyOutcome{Code: scsipt.VerifyGood}, nil
}

// Close implements interfaces.Device.
func (d *MemDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// FailRange scripts every Verify call whose starting LBA falls in
// [start, end) to report code instead of VerifyGood.
func (d *MemDevice) FailRange(start, end uint64, code scsipt.VerifyCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fails = append(d.fails, failRange{start: start, end: end, code: code})
}

// ClearFailures removes every scripted failure range.
func (d *MemDevice) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fails = nil
}

// SizeBytes reports the device's capacity in bytes, assuming the
// standard 512-byte sector.
func (d *MemDevice) SizeBytes() uint64 {
	return d.sectors * constants.SectorSize
}
