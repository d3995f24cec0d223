// Package api serves the gateway's HTTP surface: the scan endpoint used by
// Wi-Fi scanners, read access to packets and positions, the track views and
// the live event stream.
package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/ingest"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/radio"
	"github.com/banshee-data/catfinder/internal/serialmux"
	"github.com/banshee-data/catfinder/internal/timeutil"
)

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// StationControl is the station as seen by the API.
type StationControl interface {
	State() radio.StationState
	SetWaitTime(seconds uint16)
}

// BoardState reports what the ingest pipeline learned from the board.
type BoardState interface {
	CurrentState() map[string]any
	Stats() ingest.Stats
}

// Options carries the optional collaborators and view settings.
type Options struct {
	Locator      *locate.Locator
	Station      StationControl
	Board        BoardState
	Hub          *Hub
	Clock        timeutil.Clock
	MapWindow    time.Duration
	ViewHalfSide float64 // meters
}

type Server struct {
	m    serialmux.SerialMuxInterface
	db   *db.DB
	opts Options
}

func NewServer(m serialmux.SerialMuxInterface, database *db.DB, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.MapWindow <= 0 {
		opts.MapWindow = 24 * time.Hour
	}
	if opts.ViewHalfSide <= 0 {
		opts.ViewHalfSide = 250
	}
	return &Server{m: m, db: database, opts: opts}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.showMap)
	mux.HandleFunc("/api/scan", s.receiveScan)
	mux.HandleFunc("/api/packets", s.listPackets)
	mux.HandleFunc("/api/packets/", s.showPacket)
	mux.HandleFunc("/api/station_packets", s.listStationPackets)
	mux.HandleFunc("/api/positions", s.listPositions)
	mux.HandleFunc("/api/aps", s.listAPs)
	mux.HandleFunc("/api/map", s.showMap)
	mux.HandleFunc("/api/track.png", s.renderTrack)
	mux.HandleFunc("/api/station", s.station)
	mux.HandleFunc("/api/board", s.showBoard)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/command", s.sendCommandHandler)
	if s.opts.Hub != nil {
		mux.Handle("/api/live", s.opts.Hub)
	}
	return mux
}
