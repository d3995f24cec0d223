package serialmux

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localHostRequest makes the request pass tsweb.AllowDebugAccess.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAdminSendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		status int
	}{
		{"valid", http.MethodPost, url.Values{"command": {"?"}}, http.StatusOK},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"two lines", http.MethodPost, url.Values{"command": {"?\nC=0"}}, http.StatusBadRequest},
		{"get", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, "?\n", port.Written())
}

func TestAdminPages(t *testing.T) {
	httpMux := http.NewServeMux()
	NewDisabledSerialMux().AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "station board")

	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/tail.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestAdminTailStreamsLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mux.Monitor(ctx) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the subscription exists once the ping is flushed
	buf := make([]byte, len(": ping\n\n"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)

	port.AddReadData("hello board\n")

	got := make(chan string, 1)
	go func() {
		b := make([]byte, 64)
		n, _ := io.ReadAtLeast(resp.Body, b, len("event: log\ndata: hello board\n\n"))
		got <- string(b[:n])
	}()
	select {
	case s := <-got:
		assert.Contains(t, s, "event: log\ndata: hello board\n\n")
	case <-time.After(2 * time.Second):
		t.Fatal("no SSE data")
	}
}

func TestAdminTailFiltersByType(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/tail?type=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mux.Monitor(ctx) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail?type=frame", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, len(": ping\n\n"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)

	port.AddReadData("booting\n{\"freq\":868.1}\nRX,00,-90,7\n")

	want := "event: frame\ndata: RX,00,-90,7\n\n"
	got := make(chan string, 1)
	go func() {
		b := make([]byte, len(want))
		n, _ := io.ReadFull(resp.Body, b)
		got <- string(b[:n])
	}()
	select {
	case s := <-got:
		assert.Equal(t, want, s, "only frame lines are streamed")
	case <-time.After(2 * time.Second):
		t.Fatal("no SSE data")
	}
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	_, ch = d.Subscribe()
	assert.NoError(t, d.SendCommand("?"))
	assert.NoError(t, d.Initialise())
	require.NoError(t, d.Close())
	_, ok = <-ch
	assert.False(t, ok)

	_, ch = d.Subscribe()
	_, ok = <-ch
	assert.False(t, ok, "subscribe after close returns a closed channel")
	assert.NoError(t, d.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)
}

var _ SerialMuxInterface = (*SerialMux[*TestableSerialPort])(nil)
var _ SerialMuxInterface = (*DisabledSerialMux)(nil)
