package packet

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStationPacket(t *testing.T) {
	p := NewStationPacket()

	assert.Equal(t, StationUID, p.UID)
	assert.Equal(t, Version, p.Version)
	assert.Zero(t, p.Number)
	assert.Zero(t, p.WaitTime)
}

func TestStationPacketIncrementWraps(t *testing.T) {
	p := NewStationPacket()
	p.WaitTime = 600

	for i := 0; i < 255; i++ {
		p.IncrementPacketNumber()
	}
	assert.Equal(t, uint8(255), p.Number)

	p.IncrementPacketNumber()
	assert.Equal(t, uint8(0), p.Number, "256 increments should return to zero")

	// nothing else moves
	assert.Equal(t, StationUID, p.UID)
	assert.Equal(t, Version, p.Version)
	assert.Equal(t, uint16(600), p.WaitTime)
}

func TestStationPacketLayout(t *testing.T) {
	p := NewStationPacket()
	p.IncrementPacketNumber()
	p.IncrementPacketNumber()
	p.IncrementPacketNumber()

	got := p.Bytes()

	var want [StationPacketSize]byte
	binary.LittleEndian.PutUint32(want[0:4], StationUID)
	want[4] = 1
	want[5] = 3
	want[6], want[7] = 0, 0

	assert.Equal(t, want, got)
	// station UID little-endian: 7C C3 55 FE
	assert.Equal(t, []byte{0x7C, 0xC3, 0x55, 0xFE}, got[0:4])
}

func TestStationPacketWaitTimeByteOrder(t *testing.T) {
	p := StationPacket{UID: 0x01020304, Version: 9, Number: 8, WaitTime: 0xBEEF}
	got := p.Bytes()
	assert.Equal(t, [StationPacketSize]byte{0x04, 0x03, 0x02, 0x01, 9, 8, 0xEF, 0xBE}, got)
}

func TestStationPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet StationPacket
	}{
		{name: "fresh", packet: NewStationPacket()},
		{name: "all ones", packet: StationPacket{UID: 0xFFFFFFFF, Version: 0xFF, Number: 0xFF, WaitTime: 0xFFFF}},
		{name: "zero value", packet: StationPacket{}},
		{name: "foreign uid is kept", packet: StationPacket{UID: CatUID, Version: 7, Number: 42, WaitTime: 1200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := tt.packet.MarshalBinary()
			require.NoError(t, err)
			require.Len(t, encoded, StationPacketSize)

			decoded, err := ParseStationPacket(encoded)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.packet, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStationPacketRejectsLength(t *testing.T) {
	for _, n := range []int{0, 1, 7, 9, CatPacketSize} {
		_, err := ParseStationPacket(make([]byte, n))
		require.Error(t, err, "length %d", n)
		assert.True(t, errors.Is(err, ErrFormat))

		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "station", fe.Packet)
		assert.Equal(t, n, fe.Len)
		assert.Equal(t, StationPacketSize, fe.Want)
	}
}

func TestStationUnmarshalLeavesPacketOnError(t *testing.T) {
	p := NewStationPacket()
	p.Number = 17
	err := p.UnmarshalBinary([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Equal(t, uint8(17), p.Number)
}
