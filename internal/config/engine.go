// Package config loads the engine configuration file. All fields are
// optional; a partial JSON file overrides just the values it names and
// the Get* methods fall back to defaults for the rest.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harbor-data/portcall.report/internal/units"
)

// EngineConfig is the root configuration for the call engine daemon.
// The same JSON shape is accepted at startup via --config.
type EngineConfig struct {
	// Server params
	ListenAddr *string `json:"listen_addr,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`
	Units      *string `json:"units,omitempty"`

	// Worker params
	WorkerInterval    *string `json:"worker_interval,omitempty"` // duration string like "1m"
	MetricsWindowDays *int    `json:"metrics_window_days,omitempty"`

	// Feed params
	FeedPort *string `json:"feed_port,omitempty"`
	BaudRate *int    `json:"baud_rate,omitempty"`
	Parity   *string `json:"parity,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyEngineConfig returns an EngineConfig with all fields set to nil.
func EmptyEngineConfig() *EngineConfig {
	return &EngineConfig{}
}

// LoadEngineConfig loads an EngineConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON retain their defaults,
// so partial configs are safe.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEngineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *EngineConfig) Validate() error {
	if c.WorkerInterval != nil && *c.WorkerInterval != "" {
		d, err := time.ParseDuration(*c.WorkerInterval)
		if err != nil {
			return fmt.Errorf("invalid worker_interval '%s': %w", *c.WorkerInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("worker_interval must be positive, got %s", d)
		}
	}

	if c.MetricsWindowDays != nil && *c.MetricsWindowDays < 1 {
		return fmt.Errorf("metrics_window_days must be at least 1, got %d", *c.MetricsWindowDays)
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units '%s': valid units are %s", *c.Units, units.GetValidUnitsString())
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.Parity != nil {
		switch *c.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("invalid parity '%s': must be N, E, or O", *c.Parity)
		}
	}

	return nil
}

// GetListenAddr returns the listen address or the default.
func (c *EngineConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetDBPath returns the database path or the default.
func (c *EngineConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "portcall.db"
	}
	return *c.DBPath
}

// GetUnits returns the display unit or the default.
func (c *EngineConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.KM
	}
	return *c.Units
}

// GetWorkerInterval parses and returns the WorkerInterval as a time.Duration.
func (c *EngineConfig) GetWorkerInterval() time.Duration {
	if c.WorkerInterval == nil || *c.WorkerInterval == "" {
		return time.Minute // default
	}
	d, err := time.ParseDuration(*c.WorkerInterval)
	if err != nil {
		return time.Minute // default on parse error
	}
	return d
}

// GetMetricsWindowDays returns the metrics window in days or the default.
func (c *EngineConfig) GetMetricsWindowDays() int {
	if c.MetricsWindowDays == nil {
		return 7
	}
	return *c.MetricsWindowDays
}

// GetFeedPort returns the serial device path, or "" when no feed is
// configured.
func (c *EngineConfig) GetFeedPort() string {
	if c.FeedPort == nil {
		return ""
	}
	return *c.FeedPort
}

// GetBaudRate returns the serial baud rate or the default.
func (c *EngineConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 38400 // NMEA high-speed output rate
	}
	return *c.BaudRate
}

// GetParity returns the serial parity or the default.
func (c *EngineConfig) GetParity() string {
	if c.Parity == nil || *c.Parity == "" {
		return "N"
	}
	return *c.Parity
}
