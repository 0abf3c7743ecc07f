package db

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/harbor-data/portcall.report/internal/timeutil"
)

// CallController manages the state and execution of the call worker.
// It provides thread-safe control over whether the worker runs, and
// supports manual triggering from the API.
type CallController struct {
	worker        *CallWorker
	clock         timeutil.Clock
	enabled       bool
	mu            sync.RWMutex
	manualTrigger chan struct{}
	fullHistory   chan struct{}

	// Status tracking
	lastRunAt    time.Time
	lastRunError error
	runCount     int64
	currentRun   *CallRunInfo
	lastRun      *CallRunInfo
}

// CallRunInfo captures details about a single call worker run.
type CallRunInfo struct {
	Trigger    string    `json:"trigger,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// CallWorkerStatus represents the current state of the call worker.
type CallWorkerStatus struct {
	Enabled      bool         `json:"enabled"`
	LastRunAt    time.Time    `json:"last_run_at"`
	LastRunError string       `json:"last_run_error,omitempty"`
	RunCount     int64        `json:"run_count"`
	IsHealthy    bool         `json:"is_healthy"`
	CurrentRun   *CallRunInfo `json:"current_run,omitempty"`
	LastRun      *CallRunInfo `json:"last_run,omitempty"`
}

// NewCallController creates a new controller for the call worker.
func NewCallController(worker *CallWorker) *CallController {
	return &CallController{
		worker:  worker,
		clock:   timeutil.RealClock{},
		enabled: true, // Default to enabled on boot
		// Buffered channel of size 1 to coalesce multiple rapid trigger requests.
		// If a trigger is already pending, subsequent triggers are skipped.
		manualTrigger: make(chan struct{}, 1),
		fullHistory:   make(chan struct{}, 1),
	}
}

// IsEnabled returns whether the call worker is currently enabled.
func (cc *CallController) IsEnabled() bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.enabled
}

// SetEnabled sets whether the call worker should run.
// If enabling, it also triggers an immediate run.
func (cc *CallController) SetEnabled(enabled bool) {
	cc.mu.Lock()
	cc.enabled = enabled
	cc.mu.Unlock()

	if enabled {
		// Trigger immediate run when enabling
		cc.TriggerManualRun()
	}
}

// TriggerManualRun triggers a manual run of the call worker.
// This is non-blocking and safe to call multiple times.
func (cc *CallController) TriggerManualRun() {
	select {
	case cc.manualTrigger <- struct{}{}:
		// Trigger sent
	default:
		// Channel already has a pending trigger, skip
		log.Printf("Call worker manual trigger skipped (already pending)")
	}
}

// TriggerFullHistoryRun triggers a full re-derivation of calls from the
// stored position history. This is non-blocking and safe to call
// multiple times.
func (cc *CallController) TriggerFullHistoryRun() {
	select {
	case cc.fullHistory <- struct{}{}:
		// Trigger sent
	default:
		// Channel already has a pending trigger, skip
		log.Printf("Call worker full-history trigger skipped (already pending)")
	}
}

// GetStatus returns the current status of the call worker.
func (cc *CallController) GetStatus() CallWorkerStatus {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	status := CallWorkerStatus{
		Enabled:   cc.enabled,
		LastRunAt: cc.lastRunAt,
		RunCount:  cc.runCount,
		IsHealthy: true,
	}

	if cc.lastRunError != nil {
		status.LastRunError = cc.lastRunError.Error()
		status.IsHealthy = false
	}
	if cc.currentRun != nil {
		runCopy := *cc.currentRun
		status.CurrentRun = &runCopy
	}
	if cc.lastRun != nil {
		runCopy := *cc.lastRun
		status.LastRun = &runCopy
	}

	// Consider unhealthy if enabled but hasn't run in 2x the interval
	if cc.enabled && !cc.lastRunAt.IsZero() {
		expectedInterval := cc.worker.Interval * 2
		if cc.clock.Since(cc.lastRunAt) > expectedInterval {
			status.IsHealthy = false
		}
	}

	return status
}

func (cc *CallController) startRun(trigger string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.currentRun = &CallRunInfo{
		Trigger:   trigger,
		StartedAt: cc.clock.Now(),
	}
}

func (cc *CallController) finishRun(err error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	now := cc.clock.Now()
	if cc.currentRun == nil {
		cc.currentRun = &CallRunInfo{
			Trigger:   "unknown",
			StartedAt: now,
		}
	}
	cc.currentRun.FinishedAt = now
	cc.currentRun.DurationMs = now.Sub(cc.currentRun.StartedAt).Milliseconds()
	if err != nil {
		cc.currentRun.Error = err.Error()
	}

	cc.lastRun = cc.currentRun
	cc.currentRun = nil

	cc.lastRunAt = now
	cc.lastRunError = err
	cc.runCount++
}

// runGuarded performs one sweep under the enabled flag and records it
// in the run history.
func (cc *CallController) runGuarded(ctx context.Context, trigger string, run func(context.Context) error) {
	if !cc.IsEnabled() {
		log.Printf("Call worker %s run skipped (disabled)", trigger)
		return
	}

	cc.startRun(trigger)
	err := run(ctx)
	cc.finishRun(err)
	if err != nil {
		log.Printf("Call worker %s run error: %v", trigger, err)
		return
	}
	log.Printf("Call worker completed %s run", trigger)
}

// Run starts the call worker loop. This should be called in a goroutine.
// It will run periodically based on the worker's Interval, but only when
// enabled. It also responds to manual triggers from the API.
func (cc *CallController) Run(ctx context.Context) error {
	ticker := cc.clock.NewTicker(cc.worker.Interval)
	defer ticker.Stop()
	log.Printf("Call worker loop started: enabled=%t interval=%s", cc.IsEnabled(), cc.worker.Interval)

	// Run once immediately on startup
	cc.runGuarded(ctx, "initial", cc.worker.RunOnce)

	for {
		select {
		case <-ticker.C():
			cc.runGuarded(ctx, "periodic", cc.worker.RunOnce)
		case <-cc.manualTrigger:
			cc.runGuarded(ctx, "manual", cc.worker.RunOnce)
		case <-cc.fullHistory:
			cc.runGuarded(ctx, "full-history", cc.worker.RunFullHistory)
		case <-ctx.Done():
			log.Printf("Call worker terminated")
			return ctx.Err()
		}
	}
}
