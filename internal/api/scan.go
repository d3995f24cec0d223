package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/catfinder/internal/httputil"
	"github.com/banshee-data/catfinder/internal/ingest"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/packet"
)

const maxScanBody = 1 << 20

type scanAP struct {
	BSSID   string `json:"bssid"`
	RSSI    int    `json:"rssi"`
	Channel int    `json:"channel"`
}

type scanRequest struct {
	ScanID json.RawMessage `json:"scan_id"`
	APs    []scanAP        `json:"aps"`
}

// scanID renders the request's scan_id, which scanners send as a number or a
// string.
func (r scanRequest) scanID() string {
	var s string
	if err := json.Unmarshal(r.ScanID, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(r.ScanID))
}

type scanError struct {
	BSSID string `json:"bssid"`
	Error string `json:"error"`
}

type scanResponse struct {
	Status   string      `json:"status"`
	Errors   []scanError `json:"errors"`
	Position any         `json:"position,omitempty"`
}

// receiveScan estimates a position from a scanner's access point list.
func (s *Server) receiveScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.opts.Locator == nil {
		httputil.NotFound(w, "locator disabled")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxScanBody))
	if err != nil {
		httputil.BadRequest(w, "Invalid data format")
		return
	}
	var req scanRequest
	if err := json.Unmarshal(body, &req); err != nil || req.APs == nil || len(req.ScanID) == 0 ||
		string(req.ScanID) == "null" {
		httputil.BadRequest(w, "Invalid data format")
		return
	}

	resp := scanResponse{Errors: []scanError{}}
	samples := make([]locate.Sample, 0, len(req.APs))
	for _, ap := range req.APs {
		if ap.BSSID == "" || ap.RSSI == 0 {
			continue
		}
		b, err := packet.ParseBSSID(strings.TrimSpace(ap.BSSID))
		if err != nil {
			resp.Errors = append(resp.Errors, scanError{BSSID: ap.BSSID, Error: fmt.Sprintf("invalid BSSID: %v", err)})
			continue
		}
		samples = append(samples, locate.Sample{BSSID: b, RSSI: ap.RSSI})
	}

	res, err := s.opts.Locator.Locate(r.Context(), locate.Request{ScanID: req.scanID(), Samples: samples})
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to locate: %v", err))
		return
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, scanError{BSSID: e.BSSID.String(), Error: e.Error})
	}
	resp.Status = res.Status
	if res.Position != nil {
		resp.Position = res.Position
		if s.opts.Hub != nil {
			s.opts.Hub.Publish(ingest.EventPosition, res.Position)
		}
	}
	httputil.WriteJSONOK(w, resp)
}
