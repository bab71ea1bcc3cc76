package scsipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCDB10(t *testing.T) {
	cdb := BuildCDB10(0x01020304, 0x0506, 3, true, false)

	require.Equal(t, byte(0x2f), cdb[0])
	// vrprotect=3 (011) << 5 = 0x60, dpo=1 << 4 = 0x10 -> 0x70
	assert.Equal(t, byte(0x70), cdb[1])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, cdb[2:6])
	assert.Equal(t, byte(0), cdb[6])
	assert.Equal(t, []byte{0x05, 0x06}, cdb[7:9])
	assert.Equal(t, byte(0), cdb[9])
}

func TestBuildCDB10RoundTrip(t *testing.T) {
	cdb := BuildCDB10(1234, 56, 5, false, true)

	gotVrprotect := (cdb[1] >> 5) & 0x7
	gotDPO := (cdb[1] >> 4) & 0x1
	gotBytechk := (cdb[1] >> 1) & 0x1
	gotLBA := uint32(cdb[2])<<24 | uint32(cdb[3])<<16 | uint32(cdb[4])<<8 | uint32(cdb[5])
	gotCount := uint16(cdb[7])<<8 | uint16(cdb[8])

	assert.Equal(t, uint8(5), gotVrprotect)
	assert.Equal(t, uint8(0), gotDPO)
	assert.Equal(t, uint8(1), gotBytechk)
	assert.Equal(t, uint32(1234), gotLBA)
	assert.Equal(t, uint16(56), gotCount)
}

func TestNormalizeSenseFixedMediumError(t *testing.T) {
	sense := make([]byte, 18)
	sense[0] = 0x70
	sense[2] = 0x03 // medium error
	sense[7] = 0x0a
	sense[12] = 0x11
	sense[13] = 0x00

	report, ok := normalizeSense(sense)
	require.True(t, ok)
	assert.Equal(t, SenseMediumError, report.SenseKey)
}

func TestNormalizeSenseDescriptorMediumErrorWithInfo(t *testing.T) {
	sense := []byte{
		0x72, 0x03, 0x11, 0x04, 0x00, 0x00, 0x00, 0x0c,
		0x00, 0x0a, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x12, 0x34,
	}

	report, ok := normalizeSense(sense)
	require.True(t, ok)
	assert.Equal(t, SenseMediumError, report.SenseKey)

	info, valid := senseInfoField(sense)
	require.True(t, valid)
	assert.Equal(t, uint64(0x1234), info)
}

func TestNormalizeSenseIdempotent(t *testing.T) {
	sense := []byte{0x70, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x00, 0x11, 0x00}

	first, _ := normalizeSense(sense)
	second, _ := normalizeSense(sense)
	assert.Equal(t, first, second)
}

func TestSenseKeyClassification(t *testing.T) {
	cases := []struct {
		name     string
		sense    []byte
		wantCode VerifyCode
	}{
		{
			name:     "illegal request invalid op",
			sense:    []byte{0x70, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x00, 0x20, 0x00},
			wantCode: VerifyInvalidOp,
		},
		{
			name:     "illegal request other",
			sense:    []byte{0x70, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x00, 0x24, 0x00},
			wantCode: VerifyIllegalReq,
		},
		{
			name:     "unit attention",
			sense:    []byte{0x70, 0x00, 0x06, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x00},
			wantCode: VerifyUnitAttention,
		},
		{
			name:     "aborted command",
			sense:    []byte{0x70, 0x00, 0x0b, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x00},
			wantCode: VerifyAbortedCommand,
		},
		{
			name:     "no sense is success",
			sense:    []byte{0x70, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0a},
			wantCode: VerifyGood,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report, ok := normalizeSense(tc.sense)
			require.True(t, ok)

			got := classifySenseKey(report)
			assert.Equal(t, tc.wantCode, got)
		})
	}
}
