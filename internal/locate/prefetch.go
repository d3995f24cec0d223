package locate

import (
	"context"
	"fmt"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/timeutil"
	"github.com/banshee-data/catfinder/internal/wigle"
)

// AreaSearcher pages through the access points inside a rectangle.
type AreaSearcher interface {
	SearchArea(ctx context.Context, area wigle.Area, fn func([]wigle.Network) error) (int, error)
}

// LocationInserter stores access points without overwriting known ones.
type LocationInserter interface {
	InsertAPLocations(ctx context.Context, locs []db.APLocation) (int, error)
}

// Prefetcher fills the location store with every access point around a
// point, so trackers can be located without per-BSSID lookups.
type Prefetcher struct {
	search AreaSearcher
	store  LocationInserter
	clock  timeutil.Clock
}

func NewPrefetcher(search AreaSearcher, store LocationInserter, clock timeutil.Clock) *Prefetcher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Prefetcher{search: search, store: store, clock: clock}
}

// PrefetchResult counts what one Prefetch did.
type PrefetchResult struct {
	Seen     int // results returned by the search
	InRadius int
	Inserted int // new rows; already known access points are kept
}

// Prefetch searches the square around center and stores every located
// access point within radiusKm of it.
func (p *Prefetcher) Prefetch(ctx context.Context, center Point, radiusKm float64) (PrefetchResult, error) {
	var res PrefetchResult
	box := BoundingBox(center, radiusKm)
	area := wigle.Area{LatMin: box.MinLat, LatMax: box.MaxLat, LonMin: box.MinLon, LonMax: box.MaxLon}

	seen, err := p.search.SearchArea(ctx, area, func(page []wigle.Network) error {
		locs := make([]db.APLocation, 0, len(page))
		for _, n := range page {
			if !n.HasLocation() || n.NetID == "" {
				continue
			}
			pt := Point{Lat: *n.TriLat, Lon: *n.TriLong}
			if DistanceKm(center, pt) > radiusKm {
				continue
			}
			bssid, err := packet.ParseBSSID(n.NetID)
			if err != nil {
				logf("skipping netid %q: %v", n.NetID, err)
				continue
			}
			locs = append(locs, db.APLocation{
				BSSID:       bssid,
				Lat:         pt.Lat,
				Lon:         pt.Lon,
				Source:      db.SourceArea,
				Channel:     n.Channel,
				Road:        n.Road,
				HouseNumber: n.HouseNumber,
				LastUpdate:  n.LastUpdate,
				FetchedAt:   p.clock.Now(),
			})
		}
		res.InRadius += len(locs)
		if len(locs) == 0 {
			return nil
		}
		inserted, err := p.store.InsertAPLocations(ctx, locs)
		res.Inserted += inserted
		return err
	})
	res.Seen = seen
	if err != nil {
		return res, fmt.Errorf("prefetch around %.5f,%.5f: %w", center.Lat, center.Lon, err)
	}
	logf("prefetch %.5f,%.5f r=%.2fkm: %d seen, %d in radius, %d new", center.Lat, center.Lon, radiusKm,
		res.Seen, res.InRadius, res.Inserted)
	return res, nil
}
