package packet

// AccessPoint describes one observed wireless network. It only travels inside
// a CatPacket. The zero value is an empty slot.
type AccessPoint struct {
	BSSID   BSSID
	RSSI    int8 // dBm
	Channel uint8
}

// NewAccessPoint copies the given values. Nothing is validated.
func NewAccessPoint(bssid BSSID, rssi int8, channel uint8) AccessPoint {
	return AccessPoint{BSSID: bssid, RSSI: rssi, Channel: channel}
}

// Set overwrites all fields in place.
func (ap *AccessPoint) Set(bssid BSSID, rssi int8, channel uint8) {
	ap.BSSID = bssid
	ap.RSSI = rssi
	ap.Channel = channel
}

// put writes the 8-byte slot form into b, which must hold AccessPointSize bytes.
func (ap AccessPoint) put(b []byte) {
	_ = b[AccessPointSize-1]
	copy(b[:BSSIDSize], ap.BSSID[:])
	b[apOffRSSI] = byte(ap.RSSI)
	b[apOffChannel] = ap.Channel
}

func readAccessPoint(b []byte) AccessPoint {
	_ = b[AccessPointSize-1]
	var ap AccessPoint
	copy(ap.BSSID[:], b[:BSSIDSize])
	ap.RSSI = int8(b[apOffRSSI])
	ap.Channel = b[apOffChannel]
	return ap
}
