package ble

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ibeaconFrame(major, minor uint16, txPower int8) []byte {
	frame := make([]byte, 25)
	binary.LittleEndian.PutUint16(frame[0:2], appleCompanyID)
	frame[2] = 0x02
	frame[3] = 0x15
	copy(frame[4:20], []byte{
		0xe2, 0xc5, 0x6d, 0xb5, 0xdf, 0xfb, 0x48, 0xd2,
		0xb0, 0x60, 0xd0, 0xf5, 0xa7, 0x10, 0x96, 0xe0,
	})
	binary.BigEndian.PutUint16(frame[20:22], major)
	binary.BigEndian.PutUint16(frame[22:24], minor)
	frame[24] = byte(txPower)
	return frame
}

func TestParseIBeacon(t *testing.T) {
	beacon, ok := ParseIBeacon(ibeaconFrame(100, 1, -59))
	require.True(t, ok)

	assert.Equal(t, "E2C56DB5-DFFB-48D2-B060-D0F5A71096E0", beacon.UUID)
	assert.Equal(t, uint16(100), beacon.Major)
	assert.Equal(t, uint16(1), beacon.Minor)
	assert.Equal(t, -59, beacon.TxPower)
	assert.Equal(t, "E2C56DB5-DFFB-48D2-B060-D0F5A71096E0:100:1", beacon.Identifier())
}

func TestParseIBeacon_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "empty",
			data: nil,
		},
		{
			name: "too short",
			data: ibeaconFrame(1, 2, -59)[:24],
		},
		{
			name: "wrong company",
			data: func() []byte {
				frame := ibeaconFrame(1, 2, -59)
				binary.LittleEndian.PutUint16(frame[0:2], 0x0006)
				return frame
			}(),
		},
		{
			name: "not an ibeacon subtype",
			data: func() []byte {
				frame := ibeaconFrame(1, 2, -59)
				frame[2] = 0x10
				return frame
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseIBeacon(tt.data)
			assert.False(t, ok)
		})
	}
}

func TestEstimateDistance(t *testing.T) {
	// At the calibrated one-meter power the estimate is exactly one meter.
	assert.InDelta(t, 1.0, EstimateDistance(-59, -59), 0.001)

	// 20 dB of extra path loss is one order of magnitude at n=2.
	assert.InDelta(t, 10.0, EstimateDistance(-79, -59), 0.001)

	// Closer than a meter yields a fractional estimate.
	assert.Less(t, EstimateDistance(-45, -59), 1.0)
}

func TestEstimateDistance_UnknownRSSI(t *testing.T) {
	assert.Equal(t, UnknownDistance, EstimateDistance(0, -59))
	assert.Equal(t, UnknownDistance, EstimateDistance(0, DefaultTxPower))
}
