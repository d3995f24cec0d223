// Package scan extracts access points from 802.11 beacon captures and packs
// them into tracker packets, the way a tracker reports what it hears.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/catfinder/internal/packet"
)

// ErrNotBeacon is returned by FromPacket for frames that do not advertise an
// access point.
var ErrNotBeacon = errors.New("not a beacon or probe response")

// ChannelFromFrequency maps a center frequency in MHz to its 802.11 channel
// number, or 0 when the frequency is not a known channel.
func ChannelFromFrequency(mhz int) uint8 {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return uint8((mhz - 2407) / 5)
	case mhz >= 5160 && mhz <= 5885:
		return uint8((mhz - 5000) / 5)
	case mhz >= 5955 && mhz <= 7115:
		return uint8((mhz - 5950) / 5)
	default:
		return 0
	}
}

// Beacon is one advertised access point.
type Beacon struct {
	AP   packet.AccessPoint
	SSID string
}

// FromPacket extracts the access point from a radiotap 802.11 beacon or probe
// response. The BSSID is Address3, the RSSI the radiotap antenna signal and
// the channel comes from the DS parameter set, falling back to the radiotap
// frequency.
func FromPacket(p gopacket.Packet) (Beacon, error) {
	dot11, ok := p.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok {
		return Beacon{}, ErrNotBeacon
	}
	if dot11.Type != layers.Dot11TypeMgmtBeacon && dot11.Type != layers.Dot11TypeMgmtProbeResp {
		return Beacon{}, ErrNotBeacon
	}
	if len(dot11.Address3) != 6 {
		return Beacon{}, fmt.Errorf("bad bssid length %d", len(dot11.Address3))
	}

	var (
		rssi    int8
		channel uint8
		ssid    string
	)
	if rt, ok := p.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); ok {
		if rt.Present.DBMAntennaSignal() {
			rssi = rt.DBMAntennaSignal
		}
		if rt.Present.Channel() {
			channel = ChannelFromFrequency(int(rt.ChannelFrequency))
		}
	}
	for _, l := range p.Layers() {
		ie, ok := l.(*layers.Dot11InformationElement)
		if !ok {
			continue
		}
		switch ie.ID {
		case layers.Dot11InformationElementIDSSID:
			ssid = string(ie.Info)
		case layers.Dot11InformationElementIDDSSet:
			if len(ie.Info) == 1 && ie.Info[0] != 0 {
				channel = ie.Info[0]
			}
		}
	}

	return Beacon{
		AP:   packet.NewAccessPoint(packet.BSSIDFromBytes(dot11.Address3), rssi, channel),
		SSID: ssid,
	}, nil
}

// Collector keeps the strongest sighting of every BSSID.
type Collector struct {
	mu      sync.Mutex
	beacons map[packet.BSSID]Beacon
}

func NewCollector() *Collector {
	return &Collector{beacons: make(map[packet.BSSID]Beacon)}
}

// Add records b unless a stronger sighting of the same BSSID is known. An
// RSSI of 0 means the capture carried no signal field; any measured sighting
// replaces it.
func (c *Collector) Add(b Beacon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.beacons[b.AP.BSSID]
	if ok && !stronger(b.AP.RSSI, prev.AP.RSSI) {
		return
	}
	c.beacons[b.AP.BSSID] = b
}

// stronger reports whether a ranks above b. Unmeasured readings rank below
// every measured one.
func stronger(a, b int8) bool {
	switch {
	case a == 0:
		return false
	case b == 0:
		return true
	default:
		return a > b
	}
}

// Len returns the number of distinct access points.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.beacons)
}

// Strongest returns every access point, strongest signal first, with
// unmeasured ones last. Ties are ordered by BSSID.
func (c *Collector) Strongest() []Beacon {
	c.mu.Lock()
	out := make([]Beacon, 0, len(c.beacons))
	for _, b := range c.beacons {
		out = append(out, b)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AP.RSSI != out[j].AP.RSSI {
			return stronger(out[i].AP.RSSI, out[j].AP.RSSI)
		}
		return out[i].AP.BSSID.String() < out[j].AP.BSSID.String()
	})
	return out
}

// Batches packs the access points, strongest first, into tracker packets of
// at most packet.MaxAccessPoints each. Packets are numbered from 0.
func (c *Collector) Batches() []packet.CatPacket {
	var (
		out []packet.CatPacket
		cur = packet.NewCatPacket()
	)
	for _, b := range c.Strongest() {
		if cur.APCount() == packet.MaxAccessPoints {
			out = append(out, cur)
			cur.ResetAccessPoints()
			cur.IncrementPacketNumber()
		}
		// cur has room: full packets were flushed above.
		_ = cur.AppendAccessPoint(b.AP)
	}
	if cur.APCount() > 0 {
		out = append(out, cur)
	}
	return out
}

// ReadPCAP feeds every beacon in a pcap stream to c and returns the number of
// beacons found. Frames that are not beacons are skipped.
func ReadPCAP(ctx context.Context, r io.Reader, c *Collector) (int, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("open pcap: %w", err)
	}
	source := gopacket.NewPacketSource(pr, pr.LinkType())
	source.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	found := 0
	for {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		p, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			return found, nil
		}
		if err != nil {
			return found, fmt.Errorf("read pcap: %w", err)
		}
		b, err := FromPacket(p)
		if err != nil {
			continue
		}
		c.Add(b)
		found++
	}
}
