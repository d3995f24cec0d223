package packet

import (
	"fmt"
	"net"
)

// BSSIDSize is the length of a link-layer hardware address.
const BSSIDSize = 6

// BSSID is the raw 6-byte hardware address of an observed network.
type BSSID [BSSIDSize]byte

// ParseBSSID parses colon, dash or dot separated notation ("aa:bb:cc:dd:ee:ff").
func ParseBSSID(s string) (BSSID, error) {
	var b BSSID
	hw, err := net.ParseMAC(s)
	if err != nil {
		return b, fmt.Errorf("parse bssid %q: %w", s, err)
	}
	if len(hw) != BSSIDSize {
		return b, fmt.Errorf("parse bssid %q: got %d bytes, want %d", s, len(hw), BSSIDSize)
	}
	copy(b[:], hw)
	return b, nil
}

// BSSIDFromBytes copies the first six bytes of addr. Shorter input is zero padded.
func BSSIDFromBytes(addr []byte) BSSID {
	var b BSSID
	copy(b[:], addr)
	return b
}

// String formats the address as upper-case colon separated hex, the form used
// as the key of the location cache.
func (b BSSID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}

// IsZero reports whether every byte is zero.
func (b BSSID) IsZero() bool { return b == BSSID{} }

func (b BSSID) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BSSID) UnmarshalText(text []byte) error {
	parsed, err := ParseBSSID(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
