package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStandardClient_NilDefaults(t *testing.T) {
	c := NewStandardClient(nil)
	if c.Client != http.DefaultClient {
		t.Error("expected nil to default to http.DefaultClient")
	}
}

func TestStandardClient_RoundTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
			w.Write(body)
			return
		}
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	c := NewStandardClient(server.Client())

	resp, err := c.Get(server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("Get body = %q, want pong", body)
	}

	resp, err = c.Post(server.URL, "text/plain", strings.NewReader("ping"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || string(body) != "ping" {
		t.Errorf("Post = %d %q, want 202 ping", resp.StatusCode, body)
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	m := NewMockHTTPClient().
		AddResponse(http.StatusAccepted, `{"status":"accepted"}`).
		AddErrorResponse(errors.New("connection refused"))

	resp, err := m.Post("http://example/api/positions", "application/json", strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("first Post failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"status":"accepted"}` {
		t.Errorf("body = %q", body)
	}

	if _, err := m.Get("http://example/api/ports"); err == nil {
		t.Error("expected queued error on second request")
	}

	// Exhausted queue falls back to an empty 200.
	resp, err = m.Get("http://example/api/ports")
	if err != nil {
		t.Fatalf("third request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("fallback status = %d, want 200", resp.StatusCode)
	}
}

func TestMockHTTPClient_RecordsRequests(t *testing.T) {
	m := NewMockHTTPClient()

	m.Get("http://example/one")
	m.Post("http://example/two", "application/json", strings.NewReader("{}"))

	if m.RequestCount() != 2 {
		t.Fatalf("RequestCount = %d, want 2", m.RequestCount())
	}
	if req := m.Request(0); req == nil || req.Method != http.MethodGet {
		t.Errorf("Request(0) = %+v, want GET", req)
	}
	if req := m.Request(1); req == nil || req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Request(1) missing content type")
	}
	if m.Request(5) != nil {
		t.Error("out-of-range Request should be nil")
	}
}
