package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/catfinder/internal/packet"
)

// CatPacketRecord is a received tracker packet with the link quality the
// station measured for it.
type CatPacketRecord struct {
	ReceivedAt time.Time
	Packet     packet.CatPacket
	RxRSSI     int
	RxSNR      float64
}

// CatPacketRow is one stored tracker packet.
type CatPacketRow struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	UID        uint32    `json:"uid"`
	Number     uint8     `json:"number"`
	VBatt      uint16    `json:"vbatt"`
	RSSI       int8      `json:"rssi"`
	SNR        int8      `json:"snr"`
	Interval   uint8     `json:"interval"`
	APCount    int       `json:"ap_count"`
	RxRSSI     int       `json:"rx_rssi"`
	RxSNR      float64   `json:"rx_snr"`
}

// Sighting is one access point slot of a stored tracker packet.
type Sighting struct {
	PacketID int64        `json:"packet_id"`
	Slot     int          `json:"slot"`
	BSSID    packet.BSSID `json:"bssid"`
	RSSI     int8         `json:"rssi"`
	Channel  uint8        `json:"channel"`
}

// RecordCatPacket stores the packet and one sighting per populated slot in a
// single transaction and returns the packet's row ID.
func (db *DB) RecordCatPacket(ctx context.Context, rec CatPacketRecord) (int64, error) {
	p := rec.Packet
	raw := p.Bytes()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO cat_packets (
			received_unix, uid, number, vbatt, rssi, snr, interval, ap_count, rx_rssi, rx_snr, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toUnix(orNow(rec.ReceivedAt)), int64(p.UID), p.Number, p.VBatt, p.RSSI, p.SNR, p.Interval,
		p.APCount(), rec.RxRSSI, rec.RxSNR, raw[:],
	)
	if err != nil {
		return 0, fmt.Errorf("insert cat packet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for slot, ap := range p.AccessPoints() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sightings (packet_id, slot, bssid, rssi, channel) VALUES (?, ?, ?, ?, ?)`,
			id, slot, ap.BSSID.String(), ap.RSSI, ap.Channel,
		); err != nil {
			return 0, fmt.Errorf("insert sighting %d: %w", slot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecentCatPackets returns up to limit packets, newest first.
func (db *DB) RecentCatPackets(ctx context.Context, limit int) ([]CatPacketRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, received_unix, uid, number, vbatt, rssi, snr, interval,
			ap_count, COALESCE(rx_rssi, 0), COALESCE(rx_snr, 0)
		FROM cat_packets ORDER BY received_unix DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatPacketRow
	for rows.Next() {
		var (
			r        CatPacketRow
			received float64
			uid      int64
		)
		if err := rows.Scan(&r.ID, &received, &uid, &r.Number, &r.VBatt, &r.RSSI, &r.SNR,
			&r.Interval, &r.APCount, &r.RxRSSI, &r.RxSNR); err != nil {
			return nil, err
		}
		r.ReceivedAt = fromUnix(received)
		r.UID = uint32(uid)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CatPacket reloads the decoded packet stored under id.
func (db *DB) CatPacket(ctx context.Context, id int64) (packet.CatPacket, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, `SELECT raw FROM cat_packets WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return packet.CatPacket{}, ErrNotFound
	}
	if err != nil {
		return packet.CatPacket{}, err
	}
	return packet.ParseCatPacket(raw)
}

// Sightings returns the access points reported in packet packetID, by slot.
func (db *DB) Sightings(ctx context.Context, packetID int64) ([]Sighting, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT slot, bssid, rssi, channel FROM sightings WHERE packet_id = ? ORDER BY slot`, packetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		s := Sighting{PacketID: packetID}
		var bssid string
		if err := rows.Scan(&s.Slot, &bssid, &s.RSSI, &s.Channel); err != nil {
			return nil, err
		}
		if s.BSSID, err = packet.ParseBSSID(bssid); err != nil {
			return nil, fmt.Errorf("sighting %d/%d: %w", packetID, s.Slot, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Station packet directions.
const (
	DirectionTx = "tx"
	DirectionRx = "rx"
)

// StationPacketRow is a station packet the gateway sent or overheard.
type StationPacketRow struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Direction string    `json:"direction"`
	UID       uint32    `json:"uid"`
	Version   uint8     `json:"version"`
	Number    uint8     `json:"number"`
	WaitTime  uint16    `json:"wait_time"`
	RxRSSI    int       `json:"rx_rssi,omitempty"`
	RxSNR     float64   `json:"rx_snr,omitempty"`
}

// NewStationPacketRow fills the packet fields of a row.
func NewStationPacketRow(direction string, p packet.StationPacket) StationPacketRow {
	return StationPacketRow{
		Direction: direction,
		UID:       p.UID,
		Version:   p.Version,
		Number:    p.Number,
		WaitTime:  p.WaitTime,
	}
}

// RecordStationPacket stores a station packet and returns its row ID.
func (db *DB) RecordStationPacket(ctx context.Context, r StationPacketRow) (int64, error) {
	var rssi, snr any
	if r.Direction == DirectionRx {
		rssi, snr = r.RxRSSI, r.RxSNR
	}
	res, err := db.ExecContext(ctx, `INSERT INTO station_packets (
			created_unix, direction, uid, version, number, wait_time, rx_rssi, rx_snr
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		toUnix(orNow(r.CreatedAt)), r.Direction, int64(r.UID), r.Version, r.Number, r.WaitTime, rssi, snr,
	)
	if err != nil {
		return 0, fmt.Errorf("insert station packet: %w", err)
	}
	return res.LastInsertId()
}

// RecentStationPackets returns up to limit station packets, newest first.
func (db *DB) RecentStationPackets(ctx context.Context, limit int) ([]StationPacketRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, created_unix, direction, uid, version, number, wait_time,
			COALESCE(rx_rssi, 0), COALESCE(rx_snr, 0)
		FROM station_packets ORDER BY created_unix DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StationPacketRow
	for rows.Next() {
		var (
			r       StationPacketRow
			created float64
			uid     int64
		)
		if err := rows.Scan(&r.ID, &created, &r.Direction, &uid, &r.Version, &r.Number, &r.WaitTime,
			&r.RxRSSI, &r.RxSNR); err != nil {
			return nil, err
		}
		r.CreatedAt = fromUnix(created)
		r.UID = uint32(uid)
		out = append(out, r)
	}
	return out, rows.Err()
}
