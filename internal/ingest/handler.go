// Package ingest handles the lines printed by the station board: tracker
// packets are answered, stored and located, station packets heard on air are
// logged and status lines update the board state.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/monitoring"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/radio"
	"github.com/banshee-data/catfinder/internal/serialmux"
	"github.com/banshee-data/catfinder/internal/timeutil"
)

var logf = monitoring.Component("ingest")

// ErrForeignUID is returned for tracker packets from an unexpected device.
var ErrForeignUID = errors.New("foreign tracker uid")

// Event types published to live subscribers.
const (
	EventCatPacket = "cat_packet"
	EventPosition  = "position"
	EventStation   = "station_packet"
	EventStatus    = "status"
)

// Store persists received and sent packets.
type Store interface {
	RecordCatPacket(ctx context.Context, rec db.CatPacketRecord) (int64, error)
	RecordStationPacket(ctx context.Context, r db.StationPacketRow) (int64, error)
}

// Locator estimates a position from access point samples.
type Locator interface {
	Locate(ctx context.Context, req locate.Request) (locate.Result, error)
}

// Replier answers a tracker with the station packet.
type Replier interface {
	Reply() (packet.StationPacket, error)
}

// Publisher fans events out to live subscribers.
type Publisher interface {
	Publish(kind string, v any)
}

// Options tune a Handler.
type Options struct {
	// AcceptForeignUID keeps tracker packets whose UID is not packet.CatUID.
	AcceptForeignUID bool
	Clock            timeutil.Clock
}

// Stats counts handled lines.
type Stats struct {
	Frames         uint64 `json:"frames"`
	CatPackets     uint64 `json:"cat_packets"`
	StationHeard   uint64 `json:"station_heard"`
	ForeignDropped uint64 `json:"foreign_dropped"`
	BadFrames      uint64 `json:"bad_frames"`
	StatusLines    uint64 `json:"status_lines"`
	LogLines       uint64 `json:"log_lines"`
}

// CatPacketEvent is published for every accepted tracker packet.
type CatPacketEvent struct {
	ID           int64                `json:"id"`
	Packet       db.CatPacketRow      `json:"packet"`
	AccessPoints []packet.AccessPoint `json:"access_points"`
}

// Handler processes board lines. Locator and Publisher may be nil.
type Handler struct {
	store   Store
	locator Locator
	station Replier
	pub     Publisher
	opts    Options

	mu    sync.Mutex
	state map[string]any
	stats Stats
}

// NewHandler returns a handler.
func NewHandler(store Store, locator Locator, station Replier, pub Publisher, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Handler{
		store:   store,
		locator: locator,
		station: station,
		pub:     pub,
		opts:    opts,
		state:   make(map[string]any),
	}
}

// HandleEvent dispatches one board line.
func (h *Handler) HandleEvent(ctx context.Context, line string) error {
	switch serialmux.ClassifyPayload(line) {
	case serialmux.EventTypeFrame:
		if err := h.handleFrame(ctx, line); err != nil {
			return fmt.Errorf("failed to handle frame: %w", err)
		}
	case serialmux.EventTypeStatus:
		if err := h.handleStatus(line); err != nil {
			return fmt.Errorf("failed to handle status: %w", err)
		}
	default:
		h.count(func(s *Stats) { s.LogLines++ })
		logf("board: %s", line)
	}
	return nil
}

func (h *Handler) handleFrame(ctx context.Context, line string) error {
	h.count(func(s *Stats) { s.Frames++ })
	frame, err := radio.ParseFrameLine(line)
	if err != nil {
		h.count(func(s *Stats) { s.BadFrames++ })
		return err
	}
	decoded, err := packet.Decode(frame.Payload)
	if err != nil {
		h.count(func(s *Stats) { s.BadFrames++ })
		return err
	}
	switch p := decoded.(type) {
	case packet.CatPacket:
		return h.handleCat(ctx, frame, p)
	case packet.StationPacket:
		return h.handleStation(ctx, frame, p)
	default:
		h.count(func(s *Stats) { s.BadFrames++ })
		return fmt.Errorf("unexpected packet type %T", decoded)
	}
}

func (h *Handler) handleCat(ctx context.Context, frame radio.Frame, p packet.CatPacket) error {
	if p.UID != packet.CatUID && !h.opts.AcceptForeignUID {
		h.count(func(s *Stats) { s.ForeignDropped++ })
		return fmt.Errorf("%w: %08X", ErrForeignUID, p.UID)
	}
	h.count(func(s *Stats) { s.CatPackets++ })

	// the tracker only listens briefly after transmitting
	if h.station != nil {
		h.reply(ctx)
	}

	now := h.opts.Clock.Now()
	id, err := h.store.RecordCatPacket(ctx, db.CatPacketRecord{
		ReceivedAt: now,
		Packet:     p,
		RxRSSI:     frame.RSSI,
		RxSNR:      frame.SNR,
	})
	if err != nil {
		return fmt.Errorf("record cat packet: %w", err)
	}
	logf("cat packet #%d id=%d aps=%d vbatt=%d rx=%ddBm/%.1fdB", p.Number, id, p.APCount(), p.VBatt, frame.RSSI, frame.SNR)

	h.publish(EventCatPacket, CatPacketEvent{
		ID: id,
		Packet: db.CatPacketRow{
			ID: id, ReceivedAt: now, UID: p.UID, Number: p.Number, VBatt: p.VBatt,
			RSSI: p.RSSI, SNR: p.SNR, Interval: p.Interval, APCount: p.APCount(),
			RxRSSI: frame.RSSI, RxSNR: frame.SNR,
		},
		AccessPoints: p.AccessPoints(),
	})

	if h.locator == nil || p.APCount() == 0 {
		return nil
	}
	res, err := h.locator.Locate(ctx, locate.Request{PacketID: id, Samples: locate.SamplesFromCatPacket(&p)})
	if err != nil {
		return fmt.Errorf("locate packet %d: %w", id, err)
	}
	for _, e := range res.Errors {
		logf("packet %d: %s: %s", id, e.BSSID, e.Error)
	}
	if res.Position == nil {
		logf("packet %d: %s", id, res.Status)
		return nil
	}
	h.publish(EventPosition, res.Position)
	return nil
}

func (h *Handler) reply(ctx context.Context) {
	pkt, err := h.station.Reply()
	if err != nil {
		logf("reply failed: %v", err)
		return
	}
	row := db.NewStationPacketRow(db.DirectionTx, pkt)
	row.CreatedAt = h.opts.Clock.Now()
	if _, err := h.store.RecordStationPacket(ctx, row); err != nil {
		logf("record tx station packet: %v", err)
	}
}

func (h *Handler) handleStation(ctx context.Context, frame radio.Frame, p packet.StationPacket) error {
	h.count(func(s *Stats) { s.StationHeard++ })

	row := db.NewStationPacketRow(db.DirectionRx, p)
	row.CreatedAt = h.opts.Clock.Now()
	row.RxRSSI = frame.RSSI
	row.RxSNR = frame.SNR
	id, err := h.store.RecordStationPacket(ctx, row)
	if err != nil {
		return fmt.Errorf("record rx station packet: %w", err)
	}
	row.ID = id
	logf("heard station %08X #%d wait=%ds", p.UID, p.Number, p.WaitTime)
	h.publish(EventStation, row)
	return nil
}

func (h *Handler) handleStatus(line string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(line), &values); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	h.mu.Lock()
	for k, v := range values {
		h.state[k] = v
	}
	h.stats.StatusLines++
	h.mu.Unlock()

	logf("status: %s", line)
	h.publish(EventStatus, values)
	return nil
}

// CurrentState returns a copy of the latest values reported by the board.
func (h *Handler) CurrentState() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(h.state))
	for k, v := range h.state {
		out[k] = v
	}
	return out
}

// Stats returns a snapshot of the counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) count(f func(*Stats)) {
	h.mu.Lock()
	f(&h.stats)
	h.mu.Unlock()
}

func (h *Handler) publish(kind string, v any) {
	if h.pub != nil {
		h.pub.Publish(kind, v)
	}
}

// Source is the part of a serial mux the handler reads from.
type Source interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// Run feeds every line from src to HandleEvent until ctx is done or the
// subscription closes.
func (h *Handler) Run(ctx context.Context, src Source) {
	id, c := src.Subscribe()
	defer src.Unsubscribe(id)
	for {
		select {
		case line, ok := <-c:
			if !ok {
				logf("subscription closed")
				return
			}
			if err := h.HandleEvent(ctx, line); err != nil {
				logf("error handling event: %v", err)
			}
		case <-ctx.Done():
			logf("subscribe routine terminated")
			return
		}
	}
}
