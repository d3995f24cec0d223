// Command wigle-fetch downloads every WiGLE access point around one or more
// center points into the gateway database, so trackers in that area can be
// located without live lookups.
//
// Center points come from -centers or the CENTER_POINTS environment variable
// as a flat comma separated list of lat,lon pairs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/catfinder/internal/config"
	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/wigle"
)

const envCenterPoints = "CENTER_POINTS"

var (
	dbPath   = flag.String("db", config.DefaultDBPath, "Path to the sqlite database")
	centers  = flag.String("centers", "", "Comma separated lat,lon pairs (default $CENTER_POINTS)")
	radiusKm = flag.Float64("radius", config.DefaultWigleAreaRadius, "Radius around each center in km")
	apiURL   = flag.String("api", config.DefaultWigleAPIURL, "WiGLE API base URL")
)

// parseCenters parses "lat,lon,lat,lon,...".
func parseCenters(s string) ([]locate.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("no center points given")
	}
	fields := strings.Split(s, ",")
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("center points must be lat,lon pairs, got %d values", len(fields))
	}
	out := make([]locate.Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", fields[i], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", fields[i+1], err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("center %v,%v out of range", lat, lon)
		}
		out = append(out, locate.Point{Lat: lat, Lon: lon})
	}
	return out, nil
}

// fetchAll prefetches each center in turn. A failed center is logged and the
// rest still run; the first error is returned.
func fetchAll(ctx context.Context, p *locate.Prefetcher, points []locate.Point, radius float64) (locate.PrefetchResult, error) {
	var (
		total    locate.PrefetchResult
		firstErr error
	)
	for _, c := range points {
		res, err := p.Prefetch(ctx, c, radius)
		total.Seen += res.Seen
		total.InRadius += res.InRadius
		total.Inserted += res.Inserted
		if err != nil {
			log.Printf("center %.6f,%.6f: %v", c.Lat, c.Lon, err)
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		log.Printf("center %.6f,%.6f: %d results, %d within %.2f km, %d new", c.Lat, c.Lon, res.Seen, res.InRadius, radius, res.Inserted)
	}
	return total, firstErr
}

func main() {
	flag.Parse()

	spec := *centers
	if spec == "" {
		spec = os.Getenv(envCenterPoints)
	}
	points, err := parseCenters(spec)
	if err != nil {
		log.Fatalf("invalid center points: %v", err)
	}

	cfg := &config.GatewayConfig{}
	cfg.ApplyEnv(os.Getenv)
	if !cfg.WigleEnabled() {
		log.Fatalf("%s and %s must be set", config.EnvWigleUser, config.EnvWigleToken)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := wigle.NewClient(nil, *apiURL, cfg.GetWigleUser(), cfg.GetWigleToken())
	total, err := fetchAll(ctx, locate.NewPrefetcher(client, database, nil), points, *radiusKm)

	count, cerr := database.APLocationCount(ctx)
	if cerr != nil {
		log.Printf("failed to count access points: %v", cerr)
	}
	log.Printf("done: %d new access points, %d stored in total", total.Inserted, count)
	if err != nil {
		os.Exit(1)
	}
}
