package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"haulbid/pkg/model"
)

func TestWorkerStartStop(t *testing.T) {
	f := newTestFixture()

	var ticks atomic.Int64
	f.bookings.findReadyFunc = func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
		ticks.Add(1)
		return nil, nil
	}

	if f.svc.Running() {
		t.Fatal("worker should not be running before Start")
	}

	f.svc.Start()
	if !f.svc.Running() {
		t.Fatal("worker should report running after Start")
	}

	deadline := time.After(time.Second)
	for ticks.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("worker did not tick on its interval, got %d ticks", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	f.svc.Stop()
	if f.svc.Running() {
		t.Fatal("worker should report stopped after Stop")
	}

	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if ticks.Load() != settled {
		t.Errorf("worker ticked after Stop: %d -> %d", settled, ticks.Load())
	}
}

func TestWorkerStartIsIdempotent(t *testing.T) {
	f := newTestFixture()

	f.svc.Start()
	f.svc.Start()
	f.svc.Start()

	f.svc.Stop()
	if f.svc.Running() {
		t.Error("single Stop should halt a worker however many times Start was called")
	}
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	f := newTestFixture()

	f.svc.Stop()

	f.svc.Start()
	f.svc.Stop()
	f.svc.Stop()
}

func TestWorkerRestart(t *testing.T) {
	f := newTestFixture()

	var ticks atomic.Int64
	f.bookings.findReadyFunc = func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
		ticks.Add(1)
		return nil, nil
	}

	f.svc.Start()
	f.svc.Stop()

	f.svc.Start()
	if !f.svc.Running() {
		t.Fatal("worker should be restartable after Stop")
	}

	deadline := time.After(time.Second)
	for ticks.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("restarted worker never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	f.svc.Stop()
}

func TestTickAbortsOnQueryFailure(t *testing.T) {
	f := newTestFixture()

	f.bookings.findReadyFunc = func(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
		return nil, errors.New("mongo unavailable")
	}

	f.svc.Tick(context.Background())

	if len(f.locks.acquired) != 0 {
		t.Error("a failed batch query must not reach booking processing")
	}
	if len(f.events.appended) != 0 {
		t.Error("a failed batch query is not a per-booking error, no event expected")
	}
}

func TestTickEmptyBatchIsSilent(t *testing.T) {
	f := newTestFixture()

	f.svc.Tick(context.Background())

	if len(f.locks.acquired) != 0 {
		t.Error("empty batch should not acquire any locks")
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("empty batch should not notify anyone")
	}
}
