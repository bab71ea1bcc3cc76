// Package scsipt implements the SCSI generic pass-through channel used to
// issue VERIFY(10) commands against a block device and classify the
// resulting sense data.
package scsipt

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gamvros/goscrub/internal/constants"
)

// sgIoHdr mirrors sg_io_hdr_t from <scsi/sg.h>, the kernel's generic SCSI
// pass-through ioctl argument.
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

const (
	sgDxferNone     = -1
	sgDxferToDev    = -2
	sgDxferFromDev  = -3
	sgDxferToFrom   = -4

	sgIoIoctl = 0x2285

	samStatCheckCondition     = 0x02
	samStatCommandTerminated  = 0x22
	driverStatusMask          = 0x0f
	driverStatusSenseBit      = 0x08
	scsiStatusMask            = 0x7e
)

// Channel wraps an open device node and issues pass-through commands
// against it.
type Channel struct {
	fd int
}

// Open opens the device node for pass-through I/O.
func Open(path string) (*Channel, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("scsipt: open %s: %w", path, err)
	}
	return &Channel{fd: fd}, nil
}

// Close closes the underlying device node.
func (c *Channel) Close() error {
	return unix.Close(c.fd)
}

// Result carries the raw outcome of one pass-through submission, mirroring
// the block-device contract's scsi_pt primitive.
type Result struct {
	Status       uint8
	HostStatus   uint16
	DriverStatus uint16
	DurationMs   uint32
	SenseLenWr   uint8
	Sense        [constants.SenseBufferLen]byte
	OSErr        error
}

// resultCategory classifies a completed pass-through the way
// get_scsi_pt_result_category does.
type resultCategory int

const (
	categoryGood resultCategory = iota
	categoryStatus
	categorySense
	categoryTransportErr
	categoryOSErr
)

func (r *Result) category() resultCategory {
	if r.OSErr != nil {
		return categoryOSErr
	}
	if r.HostStatus != 0 {
		return categoryTransportErr
	}
	drSt := int(r.DriverStatus) & driverStatusMask
	scsiSt := int(r.Status) & scsiStatusMask
	if drSt != 0 && drSt != driverStatusSenseBit {
		return categoryTransportErr
	}
	if drSt == driverStatusSenseBit || scsiSt == samStatCheckCondition || scsiSt == samStatCommandTerminated {
		return categorySense
	}
	if scsiSt != 0 {
		return categoryStatus
	}
	return categoryGood
}

// Submit issues cdb via SG_IO with direction none (no data transfer), a
// fresh sense buffer, and the given timeout, as required by the VERIFY(10)
// driver (§4.6: direction = none, 32-byte sense buffer, 60s timeout).
func (c *Channel) Submit(cdb []byte, timeout uint32) (*Result, error) {
	return c.submit(cdb, sgDxferNone, nil, timeout)
}

// SubmitRead issues cdb via SG_IO expecting data to be read into data,
// used by out-of-VERIFY collaborator commands such as READ CAPACITY.
func (c *Channel) SubmitRead(cdb []byte, data []byte, timeout uint32) (*Result, error) {
	return c.submit(cdb, sgDxferFromDev, data, timeout)
}

func (c *Channel) submit(cdb []byte, dir int32, data []byte, timeout uint32) (*Result, error) {
	res := &Result{}

	hdr := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: dir,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        uint8(len(res.Sense)),
		timeout:        timeout,
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&res.Sense[0])),
	}
	if len(data) > 0 {
		hdr.dxferLen = uint32(len(data))
		hdr.dxferp = uintptr(unsafe.Pointer(&data[0]))
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), uintptr(sgIoIoctl), uintptr(unsafe.Pointer(&hdr)))
	if errno != 0 {
		res.OSErr = errno
		return res, nil
	}

	res.Status = hdr.status
	res.HostStatus = hdr.hostStatus
	res.DriverStatus = hdr.driverStatus
	res.DurationMs = hdr.duration
	res.SenseLenWr = hdr.sbLenWr

	return res, nil
}
