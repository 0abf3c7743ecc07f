package db

import (
	"context"
	"testing"
	"time"

	"github.com/harbor-data/portcall.report/internal/timeutil"
)

func TestCallController_EnableDisable(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	controller := NewCallController(NewCallWorker(db))
	if !controller.IsEnabled() {
		t.Error("Expected controller to be enabled on boot")
	}

	controller.SetEnabled(false)
	if controller.IsEnabled() {
		t.Error("Expected controller to be disabled")
	}

	status := controller.GetStatus()
	if status.Enabled {
		t.Error("Expected status to report disabled")
	}
}

func TestCallController_TriggerCoalescing(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	controller := NewCallController(NewCallWorker(db))

	// Without a running loop the buffered trigger channel holds one
	// pending trigger; further triggers must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			controller.TriggerManualRun()
			controller.TriggerFullHistoryRun()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Triggering blocked")
	}
}

func TestCallController_HealthGoesStale(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	worker := NewCallWorker(db)
	controller := NewCallController(worker)

	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	controller.clock = clock

	controller.startRun("manual")
	controller.finishRun(nil)

	if status := controller.GetStatus(); !status.IsHealthy {
		t.Errorf("Expected healthy right after a run, got %+v", status)
	}

	// Past twice the interval without a run the worker reports unhealthy.
	clock.Advance(worker.Interval*2 + time.Second)
	if status := controller.GetStatus(); status.IsHealthy {
		t.Errorf("Expected stale worker to be unhealthy, got %+v", status)
	}

	// A disabled worker is not expected to run, so it stays healthy.
	controller.SetEnabled(false)
	if status := controller.GetStatus(); !status.IsHealthy {
		t.Errorf("Expected disabled worker to report healthy, got %+v", status)
	}
}

func TestCallController_RunGuardedHonorsDisabled(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	controller := NewCallController(NewCallWorker(db))

	controller.SetEnabled(false)
	controller.runGuarded(context.Background(), "manual", controller.worker.RunOnce)
	if got := controller.GetStatus().RunCount; got != 0 {
		t.Errorf("Expected no runs while disabled, got %d", got)
	}

	controller.SetEnabled(true)
	controller.runGuarded(context.Background(), "manual", controller.worker.RunOnce)
	status := controller.GetStatus()
	if status.RunCount != 1 {
		t.Errorf("Expected 1 run, got %d", status.RunCount)
	}
	if status.LastRun == nil || status.LastRun.Trigger != "manual" {
		t.Errorf("Expected a manual run record, got %+v", status.LastRun)
	}
}

func TestCallController_RunExecutesWorker(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	worker := NewCallWorker(db)
	worker.Interval = time.Hour // only the initial run should fire

	controller := NewCallController(worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for controller.GetStatus().RunCount == 0 {
		select {
		case <-deadline:
			t.Fatal("Worker never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	status := controller.GetStatus()
	if !status.IsHealthy {
		t.Errorf("Expected healthy status, got %+v", status)
	}
	if status.LastRun == nil || status.LastRun.Trigger != "initial" {
		t.Errorf("Expected an initial run record, got %+v", status.LastRun)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
