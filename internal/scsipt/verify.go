package scsipt

import (
	"encoding/binary"
	"fmt"

	"github.com/gamvros/goscrub/internal/constants"
)

// VerifyCode is the canonical category a VERIFY(10) call returns, per the
// sense classification table.
type VerifyCode int

const (
	// VerifyGood is success: no sense, or a recovered error.
	VerifyGood VerifyCode = iota
	VerifyNotReady
	VerifyMediumHard
	VerifyMediumHardWithInfo
	VerifyInvalidOp
	VerifyIllegalReq
	VerifyUnitAttention
	VerifyAbortedCommand
	// VerifySense is an uncategorized sense response.
	VerifySense
	// VerifyOther covers OS-level errors, transport errors, and
	// non-sense non-good SCSI status.
	VerifyOther
)

func (c VerifyCode) String() string {
	switch c {
	case VerifyGood:
		return "good"
	case VerifyNotReady:
		return "not ready"
	case VerifyMediumHard:
		return "medium or hardware error"
	case VerifyMediumHardWithInfo:
		return "medium or hardware error with info"
	case VerifyInvalidOp:
		return "invalid opcode"
	case VerifyIllegalReq:
		return "illegal request"
	case VerifyUnitAttention:
		return "unit attention"
	case VerifyAbortedCommand:
		return "aborted command"
	case VerifySense:
		return "uncategorized sense"
	default:
		return "other failure"
	}
}

// VerifyOutcome is the result of one VERIFY(10) call: the category plus,
// for MediumHardWithInfo, the bad LBA reported in the sense data.
type VerifyOutcome struct {
	Code       VerifyCode
	InfoLBA    uint64
	DurationMs uint32
}

// BuildCDB10 builds the 10-byte VERIFY(10) command descriptor block per
// §4.6: opcode 0x2F, the vrprotect/dpo/bytechk byte, a big-endian 32-bit
// LBA, a reserved byte, and a big-endian 16-bit count.
func BuildCDB10(lba uint32, count uint16, vrprotect uint8, dpo bool, bytechk bool) [constants.CDBLen]byte {
	var cdb [constants.CDBLen]byte
	cdb[0] = 0x2f

	var dpoBit, chkBit uint8
	if dpo {
		dpoBit = 1
	}
	if bytechk {
		chkBit = 1
	}
	cdb[1] = ((vrprotect & 0x7) << 5) | (dpoBit << 4) | (chkBit << 1)

	binary.BigEndian.PutUint32(cdb[2:6], lba)
	// cdb[6] reserved = 0
	binary.BigEndian.PutUint16(cdb[7:9], count)
	// cdb[9] control = 0

	return cdb
}

// classifySenseKey maps a parsed sense report's sense key onto the
// canonical VerifyCode taxonomy, per §4.6's classification table.
func classifySenseKey(report SenseReport) VerifyCode {
	switch report.SenseKey {
	case SenseNoSense, SenseRecovered:
		return VerifyGood
	case SenseNotReady:
		return VerifyNotReady
	case SenseMediumError, SenseHardwareError, SenseBlankCheck:
		if report.InfoValid {
			return VerifyMediumHardWithInfo
		}
		return VerifyMediumHard
	case SenseIllegalRequest:
		if report.ASC == 0x20 && report.ASCQ == 0x00 {
			return VerifyInvalidOp
		}
		return VerifyIllegalReq
	case SenseUnitAttention:
		return VerifyUnitAttention
	case SenseAbortedCommand:
		return VerifyAbortedCommand
	default:
		return VerifySense
	}
}

// Verify10 issues one VERIFY(10) pass-through call for count sectors
// starting at lba, and classifies the result. count must be
// ≤ constants.MaxVerifySectors; callers (the worker's sub-request split)
// are responsible for splitting larger requests.
func (c *Channel) Verify10(lba uint32, count uint16, vrprotect uint8, dpo bool) (VerifyOutcome, error) {
	cdb := BuildCDB10(lba, count, vrprotect, dpo, false /* bytechk */)

	res, err := c.Submit(cdb[:], uint32(constants.VerifyTimeout.Milliseconds()))
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("scsipt: verify10 submit: %w", err)
	}

	outcome := VerifyOutcome{DurationMs: res.DurationMs}

	switch res.category() {
	case categoryOSErr, categoryTransportErr, categoryStatus:
		outcome.Code = VerifyOther
		return outcome, nil
	case categoryGood:
		outcome.Code = VerifyGood
		return outcome, nil
	case categorySense:
		sense := res.Sense[:res.SenseLenWr]
		report, ok := normalizeSense(sense)
		if !ok {
			outcome.Code = VerifySense
			return outcome, nil
		}
		outcome.Code = classifySenseKey(report)
		if outcome.Code == VerifyMediumHardWithInfo {
			outcome.InfoLBA = report.Info
		}
		return outcome, nil
	default:
		outcome.Code = VerifyOther
		return outcome, nil
	}
}
