package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"archsite/internal/task/engine"
	logx "archsite/pkg/logx"
)

type recordingEngine struct {
	mu    sync.Mutex
	tasks []engine.Task
	err   error
	fired chan string
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{fired: make(chan string, 16)}
}

func (r *recordingEngine) Enqueue(t engine.Task) error {
	r.mu.Lock()
	r.tasks = append(r.tasks, t)
	err := r.err
	r.mu.Unlock()
	select {
	case r.fired <- t.Name:
	default:
	}
	return err
}

func TestAddScheduleValidates(t *testing.T) {
	t.Parallel()
	s := New(Config{}, newRecordingEngine(), logx.Nop())
	job := func(context.Context) error { return nil }
	if err := s.AddSchedule("", "30m", 0, job); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.AddSchedule("x", "bogus", 0, job); err == nil {
		t.Fatal("expected error for bad schedule")
	}
	if err := s.AddSchedule("x", "30m", 0, nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestAddScheduleUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{}, newRecordingEngine(), logx.Nop())
	job := func(context.Context) error { return nil }
	if err := s.AddSchedule("uploads.cleanup", "30m", 0, job); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("uploads.cleanup", "0 4 * * *", time.Minute, job); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "0 4 * * *" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if !s.Remove("uploads.cleanup") || s.Remove("uploads.cleanup") {
		t.Fatal("Remove should report true once")
	}
}

func TestTriggerEnqueuesWithOverlapSkip(t *testing.T) {
	t.Parallel()
	eng := newRecordingEngine()
	s := New(Config{}, eng, logx.Nop())
	if err := s.AddSchedule("sessions.prune", "1h", 10*time.Second, func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("sessions.prune"); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	if err := s.Trigger("missing"); err == nil {
		t.Fatal("expected error for unknown schedule")
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.tasks) != 1 {
		t.Fatalf("enqueued %d tasks", len(eng.tasks))
	}
	got := eng.tasks[0]
	if got.Name != "sessions.prune" || got.Timeout != 10*time.Second || got.Opt.Overlap != engine.OverlapSkipIfRunning {
		t.Fatalf("task = %+v", got)
	}
}

func TestCronFiresWhenStarted(t *testing.T) {
	eng := newRecordingEngine()
	eng.err = errors.New("queue full") // reported, not fatal
	s := New(Config{Enabled: true, Timezone: "UTC"}, eng, logx.Nop())
	if err := s.AddSchedule("storage.optimize", "cron:* * * * * *", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case name := <-eng.fired:
		if name != "storage.optimize" {
			t.Fatalf("fired %q", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cron did not fire")
	}
	snap := s.Snapshot()
	if !snap.Running || snap.Timezone != "UTC" || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestApplyDisableStops(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, newRecordingEngine(), logx.Nop())
	s.Start(context.Background())
	s.Apply(context.Background(), Config{Enabled: false})
	if s.Snapshot().Running {
		t.Fatal("scheduler should stop when disabled")
	}
	s.Apply(context.Background(), Config{Enabled: true})
	if !s.Snapshot().Running {
		t.Fatal("scheduler should start when re-enabled")
	}
	s.Stop(context.Background())
}
