package scsipt

import (
	"encoding/binary"
	"fmt"
)

// CapacityInSectors issues READ CAPACITY(16) to determine the device's
// sector count, the capacity_in_sectors() primitive of the block-device
// contract (§6). READ CAPACITY(16) is used over the (10) variant so
// devices larger than 2TB report correctly.
func (c *Channel) CapacityInSectors(timeoutMs uint32) (uint64, error) {
	cdb := make([]byte, 16)
	cdb[0] = 0x9e // SERVICE ACTION IN(16)
	cdb[1] = 0x10 // READ CAPACITY(16) service action
	binary.BigEndian.PutUint32(cdb[10:14], 32)

	data := make([]byte, 32)
	res, err := c.SubmitRead(cdb, data, timeoutMs)
	if err != nil {
		return 0, fmt.Errorf("scsipt: read capacity: %w", err)
	}
	if res.category() != categoryGood {
		return 0, fmt.Errorf("scsipt: read capacity failed: status=%#x host=%#x driver=%#x", res.Status, res.HostStatus, res.DriverStatus)
	}

	lastLBA := binary.BigEndian.Uint64(data[0:8])
	return lastLBA + 1, nil
}
