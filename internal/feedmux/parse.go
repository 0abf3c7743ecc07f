package feedmux

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

const (
	LineTypePosition = "position"
	LineTypeStatus   = "status"
	LineTypeUnknown  = "unknown"
)

// ClassifyLine inspects a feed line and returns a simple line type token.
// Receivers emit position reports either as JSON objects or as bare CSV
// records; lines starting with "$" are receiver status sentences.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "$"):
		return LineTypeStatus
	case strings.HasPrefix(line, "{") && strings.Contains(line, "vessel_id"):
		return LineTypePosition
	case strings.Count(line, ",") == 3:
		return LineTypePosition
	default:
		return LineTypeUnknown
	}
}

// positionReport is the JSON shape of a decoded position line.
type positionReport struct {
	VesselID  string  `json:"vessel_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Timestamp float64 `json:"ts"` // unix seconds
}

// ParsePositionLine decodes one position report line. Two formats are
// accepted: a JSON object {"vessel_id","lat","lon","ts"} and a CSV record
// "vessel_id,lat,lon,unix_ts".
func ParsePositionLine(line string) (portcall.PositionSample, error) {
	line = strings.TrimSpace(line)

	var report positionReport
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &report); err != nil {
			return portcall.PositionSample{}, fmt.Errorf("failed to decode position line: %w", err)
		}
	} else {
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return portcall.PositionSample{}, fmt.Errorf("expected 4 CSV fields, got %d", len(fields))
		}

		report.VesselID = strings.TrimSpace(fields[0])
		var err error
		if report.Latitude, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err != nil {
			return portcall.PositionSample{}, fmt.Errorf("bad latitude %q: %w", fields[1], err)
		}
		if report.Longitude, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err != nil {
			return portcall.PositionSample{}, fmt.Errorf("bad longitude %q: %w", fields[2], err)
		}
		if report.Timestamp, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err != nil {
			return portcall.PositionSample{}, fmt.Errorf("bad timestamp %q: %w", fields[3], err)
		}
	}

	if report.VesselID == "" {
		return portcall.PositionSample{}, fmt.Errorf("position line missing vessel_id")
	}
	if report.Timestamp <= 0 {
		return portcall.PositionSample{}, fmt.Errorf("position line missing timestamp")
	}

	sec, frac := math.Modf(report.Timestamp)
	return portcall.PositionSample{
		VesselID: report.VesselID,
		Position: geo.Coordinate{
			Latitude:  report.Latitude,
			Longitude: report.Longitude,
		},
		RecordedAt: time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(),
	}, nil
}
