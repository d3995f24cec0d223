// Package packet defines the fixed-size binary records exchanged between the
// station and the tracker ("cat") over the LoRa link.
//
// Every multi-byte field is little-endian. Offsets are fixed; there is no
// padding and no length prefix, so the record type is implied by the buffer
// length.
package packet

const (
	// StationUID identifies packets produced by a station.
	StationUID uint32 = 0xFE55C37C
	// CatUID identifies packets produced by a tracker.
	CatUID uint32 = 0x54705810
	// Version is the current packet-format version.
	Version uint8 = 1

	// MaxAccessPoints is the fixed access point capacity of a CatPacket.
	MaxAccessPoints = 5

	// StationPacketSize is the wire size of a StationPacket.
	// Layout: UID(4) | Version(1) | Number(1) | WaitTime(2)
	StationPacketSize = 8

	// AccessPointSize is the wire size of one embedded AccessPoint.
	// Layout: BSSID(6) | RSSI(1, signed) | Channel(1)
	AccessPointSize = 8

	// CatHeaderSize is the size of the scalar fields preceding the access point slots.
	// Layout: UID(4) | Number(1) | VBatt(2) | RSSI(1) | SNR(1) | Interval(1) | APCount(1)
	CatHeaderSize = 11

	// CatPacketSize is the wire size of a CatPacket (header + all slots, used or not).
	CatPacketSize = CatHeaderSize + AccessPointSize*MaxAccessPoints // 51 bytes
)

// field offsets
const (
	stationOffUID      = 0
	stationOffVersion  = 4
	stationOffNumber   = 5
	stationOffWaitTime = 6

	catOffUID      = 0
	catOffNumber   = 4
	catOffVBatt    = 5
	catOffRSSI     = 7
	catOffSNR      = 8
	catOffInterval = 9
	catOffAPCount  = 10
	catOffAPList   = CatHeaderSize

	apOffRSSI    = BSSIDSize
	apOffChannel = BSSIDSize + 1
)
