package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catfinder/internal/httputil"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/radio"
	"github.com/banshee-data/catfinder/internal/scan"
)

func collector(n int) *scan.Collector {
	c := scan.NewCollector()
	for i := 0; i < n; i++ {
		c.Add(scan.Beacon{AP: packet.NewAccessPoint(packet.BSSID{0x02, 0, 0, 0, 0, byte(i + 1)}, int8(-40-i), 6)})
	}
	return c
}

func TestWriteFrames(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeFrames(&sb, collector(7), 0))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, ",0,0"), l)
	}

	f, err := radio.ParseFrameLine(lines[1])
	require.NoError(t, err)
	p, err := packet.ParseCatPacket(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, p.APCount())
	assert.Equal(t, uint8(1), p.Number)
}

func TestWriteFramesLimit(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeFrames(&sb, collector(7), 3))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 1)
	f, err := radio.ParseFrameLine(lines[0])
	require.NoError(t, err)
	p, err := packet.ParseCatPacket(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, 3, p.APCount())
}

func TestBuildScanRequest(t *testing.T) {
	req := buildScanRequest("scan-1", collector(3), 2)
	assert.Equal(t, "scan-1", req.ScanID)
	require.Len(t, req.APs, 2)
	assert.Equal(t, scanAP{BSSID: "02:00:00:00:00:01", RSSI: -40, Channel: 6}, req.APs[0])

	empty := buildScanRequest("scan-2", scan.NewCollector(), 0)
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scan_id":"scan-2","aps":[]}`, string(data))
}

func TestPostScan(t *testing.T) {
	hc := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, `{"status":"success","errors":[]}`)

	status, err := postScan(context.Background(), hc, "http://gw:8080/", buildScanRequest("s", collector(1), 0))
	require.NoError(t, err)
	assert.Equal(t, "success", status)

	require.Equal(t, 1, hc.RequestCount())
	r := hc.GetRequest(0)
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "http://gw:8080/api/scan", r.URL.String())
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"bssid":"02:00:00:00:00:01"`)
}

func TestPostScanRejected(t *testing.T) {
	hc := httputil.NewMockHTTPClient().AddResponse(http.StatusBadRequest, `{"error":"Invalid data format"}`)
	_, err := postScan(context.Background(), hc, "http://gw", buildScanRequest("s", collector(1), 0))
	assert.ErrorContains(t, err, "Invalid data format")
}
