package packet

import (
	"encoding/binary"
	"fmt"
)

// CatPacket is the record a tracker sends to a station: telemetry plus up to
// MaxAccessPoints observed networks.
//
// The slot array is fixed; only the first APCount entries are meaningful and
// the rest are kept zeroed. The count is unexported so the bound can only be
// changed through AppendAccessPoint, ResetAccessPoints and UnmarshalBinary.
type CatPacket struct {
	UID      uint32
	Number   uint8
	VBatt    uint16 // raw battery reading, units owned by the firmware
	RSSI     int8   // uplink signal strength
	SNR      int8   // uplink signal-to-noise ratio
	Interval uint8  // reporting interval hint

	apCount uint8
	apList  [MaxAccessPoints]AccessPoint
}

// NewCatPacket returns an empty packet that identifies itself as a tracker.
func NewCatPacket() CatPacket {
	return CatPacket{UID: CatUID}
}

// IncrementPacketNumber advances the sequence counter, wrapping 255 -> 0.
func (p *CatPacket) IncrementPacketNumber() { p.Number++ }

// APCount returns the number of populated slots.
func (p *CatPacket) APCount() int { return int(p.apCount) }

// AppendAccessPoint stores ap in the next free slot. When all slots are used
// it returns ErrCapacityExceeded and leaves the packet untouched.
func (p *CatPacket) AppendAccessPoint(ap AccessPoint) error {
	if int(p.apCount) >= MaxAccessPoints {
		return ErrCapacityExceeded
	}
	p.apList[p.apCount] = ap
	p.apCount++
	return nil
}

// AccessPoints returns a copy of the populated slots.
func (p *CatPacket) AccessPoints() []AccessPoint {
	out := make([]AccessPoint, p.apCount)
	copy(out, p.apList[:p.apCount])
	return out
}

// AccessPoint returns slot i if it is populated.
func (p *CatPacket) AccessPoint(i int) (AccessPoint, bool) {
	if i < 0 || i >= int(p.apCount) {
		return AccessPoint{}, false
	}
	return p.apList[i], true
}

// ResetAccessPoints empties every slot.
func (p *CatPacket) ResetAccessPoints() {
	p.apCount = 0
	p.apList = [MaxAccessPoints]AccessPoint{}
}

// Bytes returns the 51-byte wire form. Unused slots are sent as zeros.
func (p *CatPacket) Bytes() [CatPacketSize]byte {
	var b [CatPacketSize]byte
	binary.LittleEndian.PutUint32(b[catOffUID:], p.UID)
	b[catOffNumber] = p.Number
	binary.LittleEndian.PutUint16(b[catOffVBatt:], p.VBatt)
	b[catOffRSSI] = byte(p.RSSI)
	b[catOffSNR] = byte(p.SNR)
	b[catOffInterval] = p.Interval
	b[catOffAPCount] = p.apCount
	for i := range p.apList {
		off := catOffAPList + i*AccessPointSize
		p.apList[i].put(b[off : off+AccessPointSize])
	}
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler. It never fails.
func (p *CatPacket) MarshalBinary() ([]byte, error) {
	b := p.Bytes()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
//
// An access point count above MaxAccessPoints is rejected. Slots at or beyond
// the count are zeroed whatever the buffer carried in them.
func (p *CatPacket) UnmarshalBinary(data []byte) error {
	if len(data) != CatPacketSize {
		return &FormatError{Packet: "cat", Len: len(data), Want: CatPacketSize}
	}
	count := data[catOffAPCount]
	if int(count) > MaxAccessPoints {
		return &FormatError{
			Packet: "cat",
			Len:    len(data),
			Reason: fmt.Sprintf("access point count %d exceeds capacity %d", count, MaxAccessPoints),
		}
	}

	p.UID = binary.LittleEndian.Uint32(data[catOffUID:])
	p.Number = data[catOffNumber]
	p.VBatt = binary.LittleEndian.Uint16(data[catOffVBatt:])
	p.RSSI = int8(data[catOffRSSI])
	p.SNR = int8(data[catOffSNR])
	p.Interval = data[catOffInterval]
	p.apCount = count
	p.apList = [MaxAccessPoints]AccessPoint{}
	for i := 0; i < int(count); i++ {
		off := catOffAPList + i*AccessPointSize
		p.apList[i] = readAccessPoint(data[off : off+AccessPointSize])
	}
	return nil
}

// ParseCatPacket decodes a 51-byte buffer.
func ParseCatPacket(data []byte) (CatPacket, error) {
	var p CatPacket
	err := p.UnmarshalBinary(data)
	return p, err
}
