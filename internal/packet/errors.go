package packet

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches every *FormatError via errors.Is.
	ErrFormat = errors.New("malformed packet")
	// ErrCapacityExceeded is returned when appending to a full CatPacket.
	ErrCapacityExceeded = fmt.Errorf("access point list full (max %d)", MaxAccessPoints)
)

// FormatError reports a buffer that cannot be decoded as the named packet type.
type FormatError struct {
	Packet string // "station", "cat" or "unknown"
	Len    int    // length of the rejected buffer
	Want   int    // expected length, 0 if the length was acceptable
	Reason string // set when the length was fine but a field was not
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed %s packet: %s", e.Packet, e.Reason)
	}
	if e.Want == 0 {
		return fmt.Sprintf("malformed %s packet: unexpected length %d", e.Packet, e.Len)
	}
	return fmt.Sprintf("malformed %s packet: length %d, want %d", e.Packet, e.Len, e.Want)
}

func (e *FormatError) Unwrap() error { return ErrFormat }
