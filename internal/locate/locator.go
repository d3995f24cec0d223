package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/timeutil"
)

// Statuses reported for a locate request.
const (
	StatusSuccess        = "success"
	StatusNoValidAPs     = "no valid APs"
	StatusNoValidWeights = "no valid weights"
)

// Sample is one access point as reported by a scan.
type Sample struct {
	BSSID packet.BSSID `json:"bssid"`
	RSSI  int          `json:"rssi"`
}

// SamplesFromCatPacket returns the populated slots of p.
func SamplesFromCatPacket(p *packet.CatPacket) []Sample {
	aps := p.AccessPoints()
	out := make([]Sample, 0, len(aps))
	for _, ap := range aps {
		out = append(out, Sample{BSSID: ap.BSSID, RSSI: int(ap.RSSI)})
	}
	return out
}

// Request is a set of samples to locate.
type Request struct {
	PacketID int64
	ScanID   string
	Samples  []Sample
}

// APError is a per access point resolution failure.
type APError struct {
	BSSID packet.BSSID `json:"bssid"`
	Error string       `json:"error"`
}

// Result is the outcome of a locate request. Position is set only on success.
type Result struct {
	Status   string       `json:"status"`
	Position *db.Position `json:"position,omitempty"`
	Errors   []APError    `json:"errors,omitempty"`
}

// PositionStore records estimated positions.
type PositionStore interface {
	RecordPosition(ctx context.Context, p db.Position) (int64, error)
}

// Locator resolves samples, estimates a position and records it.
type Locator struct {
	resolver  *Resolver
	positions PositionStore
	clock     timeutil.Clock
	minAPs    int
}

// NewLocator returns a locator that needs at least minAPs located access
// points for a fix.
func NewLocator(resolver *Resolver, positions PositionStore, clock timeutil.Clock, minAPs int) *Locator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if minAPs < 1 {
		minAPs = 1
	}
	return &Locator{resolver: resolver, positions: positions, clock: clock, minAPs: minAPs}
}

// Locate runs req. Unresolvable access points are reported in Result.Errors;
// an error is returned only when the context ends or storing fails.
func (l *Locator) Locate(ctx context.Context, req Request) (Result, error) {
	var (
		res  Result
		obs  []Observation
		seen = make(map[packet.BSSID]bool)
	)
	for _, s := range req.Samples {
		// empty slots and unmeasured signals carry nothing
		if s.BSSID.IsZero() || s.RSSI == 0 || seen[s.BSSID] {
			continue
		}
		seen[s.BSSID] = true

		loc, err := l.resolver.Resolve(ctx, s.BSSID)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			res.Errors = append(res.Errors, APError{BSSID: s.BSSID, Error: err.Error()})
			continue
		}
		obs = append(obs, Observation{BSSID: s.BSSID, RSSI: s.RSSI, Lat: loc.Lat, Lon: loc.Lon})
	}

	if len(obs) == 0 || len(obs) < l.minAPs {
		res.Status = StatusNoValidAPs
		return res, nil
	}
	fix, err := Estimate(obs)
	if errors.Is(err, ErrNoFix) {
		res.Status = StatusNoValidWeights
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}

	pos := db.Position{
		CreatedAt: l.clock.Now(),
		PacketID:  req.PacketID,
		ScanID:    req.ScanID,
		Lat:       fix.Lat,
		Lon:       fix.Lon,
		APUsed:    fix.APUsed,
	}
	id, err := l.positions.RecordPosition(ctx, pos)
	if err != nil {
		return Result{}, fmt.Errorf("record position: %w", err)
	}
	pos.ID = id
	res.Status = StatusSuccess
	res.Position = &pos
	logf("position %.6f,%.6f from %d APs (packet %d scan %q)", pos.Lat, pos.Lon, pos.APUsed, req.PacketID, req.ScanID)
	return res, nil
}
