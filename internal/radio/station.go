package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/catfinder/internal/monitoring"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/timeutil"
)

var logf = monitoring.Component("station")

// Sender writes one command line to the board.
type Sender interface {
	SendCommand(string) error
}

// Station owns the gateway's StationPacket. Every transmission advances the
// packet number and carries the current wait time.
type Station struct {
	sender Sender
	clock  timeutil.Clock

	mu       sync.Mutex
	pkt      packet.StationPacket
	lastSent time.Time
	sent     uint64
}

// StationState is a snapshot for the API.
type StationState struct {
	UID      string    `json:"uid"`
	Version  uint8     `json:"version"`
	Number   uint8     `json:"number"`
	WaitTime uint16    `json:"wait_time"`
	Sent     uint64    `json:"sent"`
	LastSent time.Time `json:"last_sent,omitempty"`
}

// NewStation returns a station that transmits through sender.
func NewStation(sender Sender, clock timeutil.Clock, waitTime uint16) *Station {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	pkt := packet.NewStationPacket()
	pkt.WaitTime = waitTime
	return &Station{sender: sender, clock: clock, pkt: pkt}
}

// SetWaitTime changes the wait time sent from the next transmission on.
func (s *Station) SetWaitTime(seconds uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkt.WaitTime = seconds
}

// Reply transmits the station packet with the next packet number and returns
// what was sent. On a send error the number is still consumed.
func (s *Station) Reply() (packet.StationPacket, error) {
	s.mu.Lock()
	s.pkt.IncrementPacketNumber()
	pkt := s.pkt
	s.mu.Unlock()

	b := pkt.Bytes()
	if err := s.sender.SendCommand(FormatTxCommand(b[:])); err != nil {
		return pkt, fmt.Errorf("send station packet %d: %w", pkt.Number, err)
	}

	s.mu.Lock()
	s.lastSent = s.clock.Now()
	s.sent++
	s.mu.Unlock()
	return pkt, nil
}

// State returns a snapshot of the station.
func (s *Station) State() StationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StationState{
		UID:      fmt.Sprintf("%08X", s.pkt.UID),
		Version:  s.pkt.Version,
		Number:   s.pkt.Number,
		WaitTime: s.pkt.WaitTime,
		Sent:     s.sent,
		LastSent: s.lastSent,
	}
}

// RunBeacon transmits the station packet every interval until ctx is done.
// Send errors are logged and the beacon keeps going.
func (s *Station) RunBeacon(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("beacon interval must be positive, got %s", interval)
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if pkt, err := s.Reply(); err != nil {
				logf("beacon failed: %v", err)
			} else {
				logf("beacon #%d wait=%ds", pkt.Number, pkt.WaitTime)
			}
		}
	}
}
