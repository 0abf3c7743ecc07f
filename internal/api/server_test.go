package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/harbor-data/portcall.report/internal/db"
	"github.com/harbor-data/portcall.report/internal/feedmux"
	"github.com/harbor-data/portcall.report/internal/units"
)

// newTestServer builds a Server backed by a fresh database file and a
// disabled feed. The caller gets the database handle for seeding.
func newTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()

	fname := strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	_ = os.Remove(fname)

	database, err := db.NewDB(fname)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
		_ = os.Remove(fname)
		_ = os.Remove(fname + "-shm")
		_ = os.Remove(fname + "-wal")
	})

	controller := db.NewCallController(db.NewCallWorker(database))
	server := NewServer(feedmux.NewDisabledFeedMux(), database, controller, units.KM, 0)
	return server, database
}

// runWorker sweeps pending positions synchronously so tests do not need
// the controller loop.
func runWorker(t *testing.T, database *db.DB) {
	t.Helper()
	if err := db.NewCallWorker(database).RunOnce(context.Background()); err != nil {
		t.Fatalf("worker run failed: %v", err)
	}
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestShowConfig(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var config map[string]interface{}
	decodeBody(t, rec, &config)

	if config["units"] != "km" {
		t.Errorf("Expected units 'km', got %v", config["units"])
	}
	if config["worker_enabled"] != true {
		t.Errorf("Expected worker_enabled true, got %v", config["worker_enabled"])
	}
	if config["metrics_window_days"] != float64(7) {
		t.Errorf("Expected metrics_window_days 7, got %v", config["metrics_window_days"])
	}
}

func TestShowConfig_MethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/config", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestSendCommand(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=STATUS"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodGet, "/command", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status to pass through, got %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("Expected body to pass through, got %q", rec.Body.String())
	}
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, colorBoldGreen + "200" + colorReset},
		{302, colorYellow + "302" + colorReset},
		{404, colorBoldRed + "404" + colorReset},
		{500, colorBoldRed + "500" + colorReset},
		{100, "100"},
	}

	for _, tt := range tests {
		if got := statusCodeColor(tt.code); got != tt.want {
			t.Errorf("statusCodeColor(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
