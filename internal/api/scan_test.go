package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/testutil"
)

type scanResult struct {
	Status   string       `json:"status"`
	Errors   []scanError  `json:"errors"`
	Position *db.Position `json:"position"`
}

func TestReceiveScan(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, env.db.UpsertAPLocation(ctx, db.APLocation{BSSID: bssid(1), Lat: 40, Lon: -3}))
	require.NoError(t, env.db.UpsertAPLocation(ctx, db.APLocation{BSSID: bssid(2), Lat: 42, Lon: -1}))

	rec := testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/scan", map[string]any{
		"scan_id": 17,
		"aps": []map[string]any{
			{"bssid": "02:00:00:00:00:01", "rssi": -70},
			{"bssid": "02-00-00-00-00-02", "rssi": -70, "channel": 11},
			{"bssid": "02:00:00:00:00:03", "rssi": -40},
			{"bssid": "bogus", "rssi": -40},
			{"bssid": "", "rssi": -40},
			{"bssid": "02:00:00:00:00:04"},
		},
	}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	got := testutil.DecodeJSON[scanResult](t, rec)
	assert.Equal(t, locate.StatusSuccess, got.Status)
	require.NotNil(t, got.Position)
	assert.InDelta(t, 41, got.Position.Lat, 1e-9)
	assert.InDelta(t, -2, got.Position.Lon, 1e-9)
	assert.Equal(t, "17", got.Position.ScanID)

	require.Len(t, got.Errors, 2)
	assert.Equal(t, "bogus", got.Errors[0].BSSID)
	assert.Equal(t, "02:00:00:00:00:03", got.Errors[1].BSSID)

	stored, err := env.db.PositionsSince(ctx, epoch.Add(-time.Second))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Zero(t, stored[0].PacketID)
}

func TestReceiveScanStatuses(t *testing.T) {
	env := setupTestServer(t)

	rec := testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/scan", map[string]any{
		"scan_id": "walk-1",
		"aps":     []map[string]any{{"bssid": "02:00:00:00:00:09", "rssi": -50}},
	}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	got := testutil.DecodeJSON[scanResult](t, rec)
	assert.Equal(t, locate.StatusNoValidAPs, got.Status)
	assert.Nil(t, got.Position)
	assert.Len(t, got.Errors, 1)

	rec = testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/scan", map[string]any{
		"scan_id": 1, "aps": []any{},
	}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"status": "no valid APs", "errors": []}`, rec.Body.String())
}

func TestReceiveScanRejectsBadInput(t *testing.T) {
	env := setupTestServer(t)

	for name, body := range map[string]string{
		"not json":        `{`,
		"missing aps":     `{"scan_id": 1}`,
		"missing scan_id": `{"aps": []}`,
		"null scan_id":    `{"scan_id": null, "aps": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(body))
			rec := testutil.Serve(env.mux, req)
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
			assert.JSONEq(t, `{"error": "Invalid data format"}`, rec.Body.String())
		})
	}

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/scan", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestScanID(t *testing.T) {
	assert.Equal(t, "abc", scanRequest{ScanID: []byte(`"abc"`)}.scanID())
	assert.Equal(t, "42", scanRequest{ScanID: []byte(` 42 `)}.scanID())
}
