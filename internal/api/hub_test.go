package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/ingest"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/live", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcast(t *testing.T) {
	env := setupTestServer(t)
	srv := httptest.NewServer(LoggingMiddleware(env.mux))
	defer srv.Close()

	a := dialHub(t, srv)
	b := dialHub(t, srv)
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	env.hub.Publish(ingest.EventPosition, db.Position{ID: 5, Lat: 1.5, Lon: 2.5})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, ingest.EventPosition, msg.Type)
		assert.JSONEq(t, `{"id": 5, "created_at": "0001-01-01T00:00:00Z", "lat": 1.5, "lon": 2.5, "ap_used": 0}`, string(msg.Data))
	}

	a.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.hub.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubPublishWithoutClients(t *testing.T) {
	h := NewHub()
	h.Publish("noop", map[string]int{"x": 1})
	h.Publish("bad", func() {}) // not encodable, dropped
	assert.Zero(t, h.ClientCount())
}

func TestHubRejectsPlainHTTP(t *testing.T) {
	env := setupTestServer(t)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/live", nil))
	assert.Equal(t, 400, rec.Code)
}
