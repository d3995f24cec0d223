package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/httputil"
	"github.com/banshee-data/catfinder/internal/units"
	"github.com/banshee-data/catfinder/internal/version"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func parseLimit(r *http.Request) (int, error) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid 'limit' parameter")
		}
		limit = min(n, maxListLimit)
	}
	return limit, nil
}

// packetView adds derived battery figures to a stored packet.
type packetView struct {
	db.CatPacketRow
	BatteryVolts   float64 `json:"battery_volts"`
	BatteryPercent float64 `json:"battery_percent"`
}

func newPacketView(r db.CatPacketRow) packetView {
	return packetView{
		CatPacketRow:   r,
		BatteryVolts:   units.BatteryVolts(r.VBatt),
		BatteryPercent: units.BatteryPercent(r.VBatt),
	}
}

func (s *Server) listPackets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rows, err := s.db.RecentCatPackets(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list packets: %v", err))
		return
	}
	out := make([]packetView, 0, len(rows))
	for _, row := range rows {
		out = append(out, newPacketView(row))
	}
	httputil.WriteJSONOK(w, out)
}

// showPacket serves /api/packets/{id} with the packet's sightings.
func (s *Server) showPacket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/packets/"), 10, 64)
	if err != nil || id < 1 {
		httputil.BadRequest(w, "invalid packet id")
		return
	}
	p, err := s.db.CatPacket(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "packet not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load packet: %v", err))
		return
	}
	sightings, err := s.db.Sightings(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load sightings: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"id":              id,
		"uid":             fmt.Sprintf("%08X", p.UID),
		"number":          p.Number,
		"vbatt":           p.VBatt,
		"battery_percent": units.BatteryPercent(p.VBatt),
		"rssi":            units.FormatDBm(int(p.RSSI)),
		"snr":             p.SNR,
		"interval":        p.Interval,
		"sightings":       sightings,
	})
}

func (s *Server) listStationPackets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rows, err := s.db.RecentStationPackets(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list station packets: %v", err))
		return
	}
	if rows == nil {
		rows = []db.StationPacketRow{}
	}
	httputil.WriteJSONOK(w, rows)
}

// maxWindowHours bounds ?hours= so the window always fits a time.Duration.
const maxWindowHours = 24 * 365

// positionWindow reads ?hours=, defaulting to the configured map window.
// Larger requests are clamped to maxWindowHours.
func (s *Server) positionWindow(r *http.Request) (time.Duration, error) {
	window := s.opts.MapWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(h) || h <= 0 {
			return 0, fmt.Errorf("invalid 'hours' parameter")
		}
		window = time.Duration(math.Min(h, maxWindowHours) * float64(time.Hour))
	}
	return window, nil
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	window, err := s.positionWindow(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	positions, err := s.db.PositionsSince(r.Context(), s.opts.Clock.Now().Add(-window))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list positions: %v", err))
		return
	}
	if positions == nil {
		positions = []db.Position{}
	}
	httputil.WriteJSONOK(w, positions)
}

func (s *Server) listAPs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		locs, err := s.db.APLocations(r.Context())
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list access points: %v", err))
			return
		}
		if locs == nil {
			locs = []db.APLocation{}
		}
		httputil.WriteJSONOK(w, locs)
	case http.MethodPost:
		// manual survey entry
		var loc db.APLocation
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&loc); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid access point: %v", err))
			return
		}
		if loc.BSSID.IsZero() || loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
			httputil.BadRequest(w, "bssid, lat and lon are required")
			return
		}
		loc.Source = db.SourceManual
		loc.FetchedAt = s.opts.Clock.Now()
		if err := s.db.UpsertAPLocation(r.Context(), loc); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to store access point: %v", err))
			return
		}
		httputil.Created(w, loc)
	default:
		httputil.MethodNotAllowed(w)
	}
}

type stationUpdate struct {
	WaitTime *int `json:"wait_time"`
}

func (s *Server) station(w http.ResponseWriter, r *http.Request) {
	if s.opts.Station == nil {
		httputil.NotFound(w, "station disabled")
		return
	}
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.opts.Station.State())
	case http.MethodPost:
		var req stationUpdate
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request: %v", err))
			return
		}
		if req.WaitTime == nil || *req.WaitTime < 0 || *req.WaitTime > 65535 {
			httputil.BadRequest(w, "wait_time must be between 0 and 65535 seconds")
			return
		}
		s.opts.Station.SetWaitTime(uint16(*req.WaitTime))
		httputil.WriteJSONOK(w, s.opts.Station.State())
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) showBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.opts.Board == nil {
		httputil.WriteJSONOK(w, map[string]any{"state": map[string]any{}})
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"state": s.opts.Board.CurrentState(),
		"stats": s.opts.Board.Stats(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(command, "\r\n") {
		http.Error(w, "Command must be a single line", http.StatusBadRequest)
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
