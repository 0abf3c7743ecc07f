// Command replay-positions replays a recorded position fixture file
// against a running daemon's ingest endpoint.
//
// The fixture holds one feed line per row, in either of the formats the
// live feed emits (JSON objects or vessel_id,lat,lon,unix CSV). Lines
// are posted to /api/positions in timestamp order; with -speed the tool
// sleeps between samples to mimic the original report cadence.
//
// Usage:
//
//	go run ./cmd/tools/replay-positions -file track.csv -server http://localhost:8080 -speed 10
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/harbor-data/portcall.report/internal/feedmux"
	"github.com/harbor-data/portcall.report/internal/httputil"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

const batchSize = 500

type positionJSON struct {
	VesselID   string    `json:"vessel_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

func postBatch(client httputil.HTTPClient, server string, samples []portcall.PositionSample) error {
	if len(samples) == 0 {
		return nil
	}

	body := make([]positionJSON, len(samples))
	for i, s := range samples {
		body[i] = positionJSON{
			VesselID:   s.VesselID,
			Latitude:   s.Position.Latitude,
			Longitude:  s.Position.Longitude,
			RecordedAt: s.RecordedAt,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	resp, err := client.Post(server+"/api/positions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ingest rejected with %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func main() {
	var server string
	var file string
	var speed float64

	flag.StringVar(&server, "server", "http://localhost:8080", "base URL of the daemon")
	flag.StringVar(&file, "file", "", "fixture file of feed lines (required)")
	flag.Float64Var(&speed, "speed", 0, "replay speed multiplier; 0 posts everything immediately")
	flag.Parse()

	if file == "" {
		log.Fatal("-file is required")
	}

	f, err := os.Open(file)
	if err != nil {
		log.Fatalf("failed to open fixture: %v", err)
	}
	defer f.Close()

	var samples []portcall.PositionSample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if feedmux.ClassifyLine(line) != feedmux.LineTypePosition {
			continue
		}
		sample, err := feedmux.ParsePositionLine(line)
		if err != nil {
			log.Printf("skipping bad line %q: %v", line, err)
			continue
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("failed to read fixture: %v", err)
	}
	if len(samples) == 0 {
		log.Fatal("fixture contains no position lines")
	}

	client := httputil.NewStandardClient(http.DefaultClient)

	if speed <= 0 {
		for start := 0; start < len(samples); start += batchSize {
			end := start + batchSize
			if end > len(samples) {
				end = len(samples)
			}
			if err := postBatch(client, server, samples[start:end]); err != nil {
				log.Fatalf("batch %d-%d failed: %v", start, end, err)
			}
		}
		fmt.Printf("posted %d positions\n", len(samples))
		return
	}

	// Paced replay: sleep the recorded inter-sample gap divided by the
	// speed multiplier.
	for i, sample := range samples {
		if i > 0 {
			gap := sample.RecordedAt.Sub(samples[i-1].RecordedAt)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) / speed))
			}
		}
		if err := postBatch(client, server, samples[i:i+1]); err != nil {
			log.Fatalf("sample %d failed: %v", i, err)
		}
		fmt.Printf("posted %s @ %s (%d/%d)\n", sample.VesselID, sample.RecordedAt.Format(time.RFC3339), i+1, len(samples))
	}
}
