package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/catfinder/internal/packet"
)

// Location sources.
const (
	SourceWigle  = "wigle"
	SourceArea   = "wigle-area"
	SourceManual = "manual"
)

// APLocation is the known position of an access point.
type APLocation struct {
	BSSID       packet.BSSID `json:"bssid"`
	Lat         float64      `json:"lat"`
	Lon         float64      `json:"lon"`
	Source      string       `json:"source"`
	Channel     int          `json:"channel,omitempty"`
	Road        string       `json:"road,omitempty"`
	HouseNumber string       `json:"housenumber,omitempty"`
	LastUpdate  string       `json:"lastupdt,omitempty"`
	FetchedAt   time.Time    `json:"fetched_at"`
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }
func nullInt(n int) sql.NullInt64       { return sql.NullInt64{Int64: int64(n), Valid: n != 0} }

func (l APLocation) args() []any {
	source := l.Source
	if source == "" {
		source = SourceWigle
	}
	return []any{
		l.BSSID.String(), l.Lat, l.Lon, source, nullInt(l.Channel),
		nullString(l.Road), nullString(l.HouseNumber), nullString(l.LastUpdate),
		toUnix(orNow(l.FetchedAt)),
	}
}

const apLocationColumns = `bssid, lat, lon, source, channel, road, housenumber, lastupdt, fetched_unix`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPLocation(r rowScanner) (APLocation, error) {
	var (
		l                     APLocation
		bssid                 string
		channel               sql.NullInt64
		road, house, lastupdt sql.NullString
		fetched               float64
	)
	if err := r.Scan(&bssid, &l.Lat, &l.Lon, &l.Source, &channel, &road, &house, &lastupdt, &fetched); err != nil {
		return APLocation{}, err
	}
	var err error
	if l.BSSID, err = packet.ParseBSSID(bssid); err != nil {
		return APLocation{}, fmt.Errorf("stored bssid %q: %w", bssid, err)
	}
	l.Channel = int(channel.Int64)
	l.Road, l.HouseNumber, l.LastUpdate = road.String, house.String, lastupdt.String
	l.FetchedAt = fromUnix(fetched)
	return l, nil
}

// APLocation returns the cached location of bssid, or ErrNotFound.
func (db *DB) APLocation(ctx context.Context, bssid packet.BSSID) (APLocation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+apLocationColumns+` FROM ap_locations WHERE bssid = ?`, bssid.String())
	l, err := scanAPLocation(row)
	if err == sql.ErrNoRows {
		return APLocation{}, ErrNotFound
	}
	return l, err
}

// UpsertAPLocation inserts or replaces the location of l.BSSID.
func (db *DB) UpsertAPLocation(ctx context.Context, l APLocation) error {
	_, err := db.ExecContext(ctx, `INSERT INTO ap_locations (`+apLocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bssid) DO UPDATE SET
			lat = excluded.lat, lon = excluded.lon, source = excluded.source,
			channel = excluded.channel, road = excluded.road, housenumber = excluded.housenumber,
			lastupdt = excluded.lastupdt, fetched_unix = excluded.fetched_unix`,
		l.args()...)
	if err != nil {
		return fmt.Errorf("upsert ap location %s: %w", l.BSSID, err)
	}
	return nil
}

// InsertAPLocations stores locs, keeping rows that already exist, and
// returns how many were new.
func (db *DB) InsertAPLocations(ctx context.Context, locs []APLocation) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO ap_locations (`+apLocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, l := range locs {
		res, err := stmt.ExecContext(ctx, l.args()...)
		if err != nil {
			return 0, fmt.Errorf("insert ap location %s: %w", l.BSSID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// APLocations returns every cached location ordered by BSSID.
func (db *DB) APLocations(ctx context.Context) ([]APLocation, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+apLocationColumns+` FROM ap_locations ORDER BY bssid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []APLocation
	for rows.Next() {
		l, err := scanAPLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// APLocationCount returns the number of cached locations.
func (db *DB) APLocationCount(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ap_locations`).Scan(&n)
	return n, err
}
