package packet

// Kind identifies the record type of a received buffer.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStation
	KindCat
)

func (k Kind) String() string {
	switch k {
	case KindStation:
		return "station"
	case KindCat:
		return "cat"
	default:
		return "unknown"
	}
}

// KindOf classifies a buffer by its length, the only thing the wire format
// guarantees to differ between the two records.
func KindOf(data []byte) (Kind, error) {
	switch len(data) {
	case StationPacketSize:
		return KindStation, nil
	case CatPacketSize:
		return KindCat, nil
	default:
		return KindUnknown, &FormatError{Packet: KindUnknown.String(), Len: len(data)}
	}
}

// Decode returns a StationPacket or a CatPacket depending on the buffer length.
func Decode(data []byte) (any, error) {
	kind, err := KindOf(data)
	if err != nil {
		return nil, err
	}
	if kind == KindStation {
		return ParseStationPacket(data)
	}
	return ParseCatPacket(data)
}
