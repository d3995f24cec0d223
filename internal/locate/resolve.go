package locate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/monitoring"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/timeutil"
	"github.com/banshee-data/catfinder/internal/wigle"
)

var logf = monitoring.Component("locate")

// ErrUnknownAP is returned when neither the store nor the remote lookup knows
// where an access point is.
var ErrUnknownAP = errors.New("locate: access point location unknown")

// LocationStore caches access point locations.
type LocationStore interface {
	APLocation(ctx context.Context, bssid packet.BSSID) (db.APLocation, error)
	UpsertAPLocation(ctx context.Context, l db.APLocation) error
}

// RemoteLookup finds access points the store does not know.
type RemoteLookup interface {
	Lookup(ctx context.Context, bssid packet.BSSID) (wigle.Network, error)
}

// missTTL is how long a remote miss suppresses further lookups for a BSSID.
const missTTL = time.Hour

// Resolver looks access points up in the store, then remotely, saving
// remote hits to the store.
type Resolver struct {
	store  LocationStore
	remote RemoteLookup
	clock  timeutil.Clock

	mu     sync.Mutex
	misses map[packet.BSSID]time.Time
}

// NewResolver returns a resolver. remote may be nil, in which case only the
// store is consulted.
func NewResolver(store LocationStore, remote RemoteLookup, clock timeutil.Clock) *Resolver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Resolver{store: store, remote: remote, clock: clock, misses: make(map[packet.BSSID]time.Time)}
}

// Resolve returns the location of bssid.
func (r *Resolver) Resolve(ctx context.Context, bssid packet.BSSID) (db.APLocation, error) {
	loc, err := r.store.APLocation(ctx, bssid)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return db.APLocation{}, err
	}
	if r.remote == nil || r.recentMiss(bssid) {
		return db.APLocation{}, ErrUnknownAP
	}

	n, err := r.remote.Lookup(ctx, bssid)
	if errors.Is(err, wigle.ErrNotFound) {
		r.markMiss(bssid)
		return db.APLocation{}, fmt.Errorf("%w: WiGLE returned no location data", ErrUnknownAP)
	}
	if err != nil {
		return db.APLocation{}, err
	}

	loc = db.APLocation{
		BSSID:       bssid,
		Lat:         *n.TriLat,
		Lon:         *n.TriLong,
		Source:      db.SourceWigle,
		Channel:     n.Channel,
		Road:        n.Road,
		HouseNumber: n.HouseNumber,
		LastUpdate:  n.LastUpdate,
		FetchedAt:   r.clock.Now(),
	}
	if err := r.store.UpsertAPLocation(ctx, loc); err != nil {
		logf("caching %s failed: %v", bssid, err)
	}
	return loc, nil
}

func (r *Resolver) recentMiss(bssid packet.BSSID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.misses[bssid]
	if !ok {
		return false
	}
	if r.clock.Since(at) >= missTTL {
		delete(r.misses, bssid)
		return false
	}
	return true
}

func (r *Resolver) markMiss(bssid packet.BSSID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses[bssid] = r.clock.Now()
}
