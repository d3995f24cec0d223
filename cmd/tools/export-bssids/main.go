// Command export-bssids writes the access points stored in the gateway
// database as the C header compiled into the tracker firmware.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/banshee-data/catfinder/internal/config"
	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/export"
	"github.com/banshee-data/catfinder/internal/fsutil"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/security"
)

var (
	dbPath = flag.String("db", config.DefaultDBPath, "Path to the sqlite database")
	outDir = flag.String("out", ".", "Directory to write "+export.HeaderFilename+" into")
	source = flag.String("source", "", "Only export access points from this source (wigle, area, manual)")
)

type locationLister interface {
	APLocations(ctx context.Context) ([]db.APLocation, error)
}

// exportHeader writes the header for every stored access point, optionally
// filtered by source, and returns the path written and the row count.
func exportHeader(ctx context.Context, store locationLister, fsys fsutil.FileSystem, dir, src string) (string, int, error) {
	path := filepath.Join(dir, export.HeaderFilename)
	if err := security.ValidateExportPath(path); err != nil {
		return "", 0, fmt.Errorf("invalid output path: %w", err)
	}

	locs, err := store.APLocations(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list access points: %w", err)
	}
	bssids := make([]packet.BSSID, 0, len(locs))
	for _, l := range locs {
		if src != "" && l.Source != src {
			continue
		}
		bssids = append(bssids, l.BSSID)
	}

	var buf bytes.Buffer
	if err := export.WriteHeader(&buf, bssids); err != nil {
		return "", 0, err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write header: %w", err)
	}
	return path, len(bssids), nil
}

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	path, n, err := exportHeader(context.Background(), database, fsutil.OSFileSystem{}, *outDir, *source)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d access points to %s", n, path)
}
