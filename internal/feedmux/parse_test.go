package feedmux

import (
	"testing"
	"time"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`{"vessel_id":"IMO9321483","lat":0.01,"lon":0.01,"ts":1767225600}`, LineTypePosition},
		{"IMO9321483,0.01,0.01,1767225600", LineTypePosition},
		{"$PSRT,STATUS,OK", LineTypeStatus},
		{"garbage", LineTypeUnknown},
		{`{"other":"json"}`, LineTypeUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyLine(tt.line); got != tt.want {
			t.Errorf("ClassifyLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestParsePositionLine_JSON(t *testing.T) {
	sample, err := ParsePositionLine(`{"vessel_id":"IMO9321483","lat":51.9496,"lon":4.1453,"ts":1767225600}`)
	if err != nil {
		t.Fatalf("ParsePositionLine failed: %v", err)
	}

	if sample.VesselID != "IMO9321483" {
		t.Errorf("Expected vessel IMO9321483, got %s", sample.VesselID)
	}
	if sample.Position.Latitude != 51.9496 || sample.Position.Longitude != 4.1453 {
		t.Errorf("Unexpected position: %+v", sample.Position)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !sample.RecordedAt.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, sample.RecordedAt)
	}
}

func TestParsePositionLine_CSV(t *testing.T) {
	sample, err := ParsePositionLine("IMO9321483, 51.9496, 4.1453, 1767225600")
	if err != nil {
		t.Fatalf("ParsePositionLine failed: %v", err)
	}

	if sample.VesselID != "IMO9321483" {
		t.Errorf("Expected vessel IMO9321483, got %s", sample.VesselID)
	}
	if sample.Position.Latitude != 51.9496 {
		t.Errorf("Unexpected latitude: %f", sample.Position.Latitude)
	}
}

func TestParsePositionLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bad json", `{"vessel_id":`},
		{"missing vessel", `{"lat":1,"lon":1,"ts":1767225600}`},
		{"missing timestamp", `{"vessel_id":"IMO9321483","lat":1,"lon":1}`},
		{"short csv", "IMO9321483,1.0,2.0"},
		{"bad csv latitude", "IMO9321483,north,2.0,1767225600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePositionLine(tt.line); err == nil {
				t.Errorf("Expected error for %q, got nil", tt.line)
			}
		})
	}
}
