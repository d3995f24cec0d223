package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Position is one estimated tracker location.
type Position struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PacketID  int64     `json:"packet_id,omitempty"` // 0 for positions posted to /api/scan
	ScanID    string    `json:"scan_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	APUsed    int       `json:"ap_used"`
}

// RecordPosition stores p and returns its row ID.
func (db *DB) RecordPosition(ctx context.Context, p Position) (int64, error) {
	var packetID sql.NullInt64
	if p.PacketID != 0 {
		packetID = sql.NullInt64{Int64: p.PacketID, Valid: true}
	}
	res, err := db.ExecContext(ctx, `INSERT INTO positions (created_unix, packet_id, scan_id, lat, lon, ap_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		toUnix(orNow(p.CreatedAt)), packetID, nullString(p.ScanID), p.Lat, p.Lon, p.APUsed)
	if err != nil {
		return 0, fmt.Errorf("insert position: %w", err)
	}
	return res.LastInsertId()
}

// PositionsSince returns positions created strictly after since, oldest first.
func (db *DB) PositionsSince(ctx context.Context, since time.Time) ([]Position, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, created_unix, COALESCE(packet_id, 0), COALESCE(scan_id, ''),
			lat, lon, ap_used
		FROM positions WHERE created_unix > ? ORDER BY created_unix, id`, toUnix(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var (
			p       Position
			created float64
		)
		if err := rows.Scan(&p.ID, &created, &p.PacketID, &p.ScanID, &p.Lat, &p.Lon, &p.APUsed); err != nil {
			return nil, err
		}
		p.CreatedAt = fromUnix(created)
		out = append(out, p)
	}
	return out, rows.Err()
}
