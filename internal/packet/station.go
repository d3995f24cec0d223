package packet

import "encoding/binary"

// StationPacket is the record a station sends to a tracker.
type StationPacket struct {
	UID      uint32
	Version  uint8
	Number   uint8  // sequence counter, wraps at 255
	WaitTime uint16 // next-contact hint; unit is owned by the transport
}

// NewStationPacket returns a packet identifying itself as a station at the
// current format version.
func NewStationPacket() StationPacket {
	return StationPacket{
		UID:     StationUID,
		Version: Version,
	}
}

// IncrementPacketNumber advances the sequence counter, wrapping 255 -> 0.
func (p *StationPacket) IncrementPacketNumber() { p.Number++ }

// Bytes returns the 8-byte wire form.
func (p StationPacket) Bytes() [StationPacketSize]byte {
	var b [StationPacketSize]byte
	binary.LittleEndian.PutUint32(b[stationOffUID:], p.UID)
	b[stationOffVersion] = p.Version
	b[stationOffNumber] = p.Number
	binary.LittleEndian.PutUint16(b[stationOffWaitTime:], p.WaitTime)
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler. It never fails.
func (p StationPacket) MarshalBinary() ([]byte, error) {
	b := p.Bytes()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. UID and version are
// decoded as-is; whether to trust them is up to the receiver.
func (p *StationPacket) UnmarshalBinary(data []byte) error {
	if len(data) != StationPacketSize {
		return &FormatError{Packet: "station", Len: len(data), Want: StationPacketSize}
	}
	p.UID = binary.LittleEndian.Uint32(data[stationOffUID:])
	p.Version = data[stationOffVersion]
	p.Number = data[stationOffNumber]
	p.WaitTime = binary.LittleEndian.Uint16(data[stationOffWaitTime:])
	return nil
}

// ParseStationPacket decodes an 8-byte buffer.
func ParseStationPacket(data []byte) (StationPacket, error) {
	var p StationPacket
	err := p.UnmarshalBinary(data)
	return p, err
}
