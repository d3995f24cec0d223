package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockHTTPClientQueue(t *testing.T) {
	m := NewMockHTTPClient().
		AddResponse(http.StatusTeapot, `{"ok":false}`).
		AddErrorResponse(errors.New("boom"))

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/a", nil)
	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusTeapot || string(body) != `{"ok":false}` {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}

	if _, err := m.Do(req); err == nil || err.Error() != "boom" {
		t.Errorf("expected queued error, got %v", err)
	}

	resp, err = m.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("drained queue should yield 200, got %v %v", resp, err)
	}

	if m.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d, want 3", m.RequestCount())
	}
	if m.GetRequest(0).URL.Path != "/a" {
		t.Errorf("unexpected request path %q", m.GetRequest(0).URL.Path)
	}
	if m.GetRequest(5) != nil {
		t.Error("GetRequest out of range should be nil")
	}
}

func TestNewStandardClientDefaultsTimeout(t *testing.T) {
	c := NewStandardClient(nil)
	if c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
}

func TestStandardClientSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := NewStandardClient(srv.Client()).Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got != UserAgent() {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent())
	}
}

func TestWriteJSONHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		want   string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "nope") }, http.StatusBadRequest, "nope"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound, "gone"},
		{"method", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "db") }, http.StatusInternalServerError, "db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tt.want {
				t.Errorf("error = %q, want %q", body["error"], tt.want)
			}
		})
	}
}
