package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, map[string]int{"answer": 42})

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["answer"] != 42 {
		t.Errorf("body = %v, want answer=42", body)
	}
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		want  int
	}{
		{"WriteJSONOK", func(w http.ResponseWriter) { WriteJSONOK(w, nil) }, http.StatusOK},
		{"Accepted", func(w http.ResponseWriter) { Accepted(w, nil) }, http.StatusAccepted},
		{"Created", func(w http.ResponseWriter) { Created(w, nil) }, http.StatusCreated},
		{"MethodNotAllowed", MethodNotAllowed, http.StatusMethodNotAllowed},
		{"BadRequest", func(w http.ResponseWriter) { BadRequest(w, "nope") }, http.StatusBadRequest},
		{"InternalServerError", func(w http.ResponseWriter) { InternalServerError(w, "boom") }, http.StatusInternalServerError},
		{"NotFound", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWriteJSONError_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "invalid latitude")

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "invalid latitude" {
		t.Errorf("error = %q, want 'invalid latitude'", body["error"])
	}
}
