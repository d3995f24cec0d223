package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/ingest"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/radio"
	"github.com/banshee-data/catfinder/internal/serialmux"
	"github.com/banshee-data/catfinder/internal/testutil"
	"github.com/banshee-data/catfinder/internal/timeutil"
	"github.com/banshee-data/catfinder/internal/version"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendCommand(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return nil
}

type fakeBoard struct{}

func (fakeBoard) CurrentState() map[string]any { return map[string]any{"sf": 9.0} }
func (fakeBoard) Stats() ingest.Stats          { return ingest.Stats{Frames: 3} }

type testEnv struct {
	server *Server
	db     *db.DB
	clock  *timeutil.MockClock
	hub    *Hub
	mux    *http.ServeMux
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	d := cloneAPITestDB(t)
	clock := timeutil.NewMockClock(epoch)
	hub := NewHub()
	s := NewServer(serialmux.NewDisabledSerialMux(), d, Options{
		Locator: locate.NewLocator(locate.NewResolver(d, nil, clock), d, clock, 1),
		Station: radio.NewStation(&recordingSender{}, clock, 60),
		Board:   fakeBoard{},
		Hub:     hub,
		Clock:   clock,
	})
	return &testEnv{server: s, db: d, clock: clock, hub: hub, mux: s.ServeMux()}
}

func bssid(last byte) packet.BSSID { return packet.BSSID{0x02, 0, 0, 0, 0, last} }

func (e *testEnv) seedPacket(t *testing.T) int64 {
	t.Helper()
	p := packet.NewCatPacket()
	p.Number = 3
	p.VBatt = 3750
	require.NoError(t, p.AppendAccessPoint(packet.NewAccessPoint(bssid(1), -55, 6)))
	id, err := e.db.RecordCatPacket(context.Background(), db.CatPacketRecord{ReceivedAt: epoch, Packet: p, RxRSSI: -100, RxSNR: 4})
	require.NoError(t, err)
	return id
}

func TestListPackets(t *testing.T) {
	env := setupTestServer(t)
	env.seedPacket(t)

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/packets?limit=5", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	got := testutil.DecodeJSON[[]packetView](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, uint8(3), got[0].Number)
	assert.InDelta(t, 3.75, got[0].BatteryVolts, 1e-9)
	assert.InDelta(t, 50, got[0].BatteryPercent, 1e-9)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/packets?limit=0", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodPost, "/api/packets", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestShowPacket(t *testing.T) {
	env := setupTestServer(t)
	id := env.seedPacket(t)

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/packets/"+strconv.FormatInt(id, 10), nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	got := testutil.DecodeJSON[map[string]any](t, rec)
	assert.Equal(t, "54705810", got["uid"])
	sightings, ok := got["sightings"].([]any)
	require.True(t, ok)
	require.Len(t, sightings, 1)
	assert.Equal(t, "02:00:00:00:00:01", sightings[0].(map[string]any)["bssid"])

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/packets/999", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/packets/abc", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestListPositions(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	for i, age := range []time.Duration{30 * time.Hour, 2 * time.Hour, 10 * time.Minute} {
		_, err := env.db.RecordPosition(ctx, db.Position{CreatedAt: epoch.Add(-age), Lat: float64(i), Lon: 1, APUsed: 2})
		require.NoError(t, err)
	}

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Len(t, testutil.DecodeJSON[[]db.Position](t, rec), 2, "default window is 24h")

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions?hours=1", nil))
	got := testutil.DecodeJSON[[]db.Position](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Lat)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions?hours=48", nil))
	assert.Len(t, testutil.DecodeJSON[[]db.Position](t, rec), 3)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions?hours=-1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions?hours=1e9", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Len(t, testutil.DecodeJSON[[]db.Position](t, rec), 3, "oversized window is clamped")

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions?hours=NaN", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	env.clock.Advance(48 * time.Hour)
	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAccessPoints(t *testing.T) {
	env := setupTestServer(t)

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/aps", nil))
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/aps",
		map[string]any{"bssid": "02:00:00:00:00:07", "lat": 48.5, "lon": 2.25}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/aps", nil))
	got := testutil.DecodeJSON[[]db.APLocation](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, bssid(7), got[0].BSSID)
	assert.Equal(t, db.SourceManual, got[0].Source)

	rec = testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/aps",
		map[string]any{"bssid": "02:00:00:00:00:08", "lat": 95, "lon": 0}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	rec = testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/aps",
		map[string]any{"bssid": "nope"}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestStation(t *testing.T) {
	env := setupTestServer(t)

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/station", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	state := testutil.DecodeJSON[radio.StationState](t, rec)
	assert.Equal(t, "FE55C37C", state.UID)
	assert.Equal(t, uint16(60), state.WaitTime)

	rec = testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/station", map[string]int{"wait_time": 900}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, uint16(900), testutil.DecodeJSON[radio.StationState](t, rec).WaitTime)

	for _, body := range []any{map[string]int{"wait_time": 70000}, map[string]int{"wait_time": -1}, map[string]string{}} {
		rec = testutil.Serve(env.mux, testutil.NewJSONRequest(t, http.MethodPost, "/api/station", body))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}

	s := NewServer(serialmux.NewDisabledSerialMux(), env.db, Options{})
	rec = testutil.Serve(s.ServeMux(), httptest.NewRequest(http.MethodGet, "/api/station", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestBoardAndVersion(t *testing.T) {
	env := setupTestServer(t)

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"state": {"sf": 9}, "stats": {"frames": 3, "cat_packets": 0, "station_heard": 0,
		"foreign_dropped": 0, "bad_frames": 0, "status_lines": 0, "log_lines": 0}}`, rec.Body.String())

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, version.Current(), testutil.DecodeJSON[version.Info](t, rec))
}

func TestStationPackets(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.db.RecordStationPacket(context.Background(), db.NewStationPacketRow(db.DirectionTx, packet.NewStationPacket()))
	require.NoError(t, err)

	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/api/station_packets", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Len(t, testutil.DecodeJSON[[]db.StationPacketRow](t, rec), 1)
}

func TestSendCommand(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=%3F"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := testutil.Serve(env.mux, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "Command sent successfully", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=%3F%0AC%3D0"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = testutil.Serve(env.mux, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/command", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestUnknownPath(t *testing.T) {
	env := setupTestServer(t)
	rec := testutil.Serve(env.mux, httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.Serve(h, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
