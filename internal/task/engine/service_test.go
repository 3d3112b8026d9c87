package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"archsite/internal/eventbus"
	logx "archsite/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) (*Service, <-chan eventbus.Event) {
	t.Helper()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	s := New(cfg, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
		unsub()
	})
	return s, events
}

// waitFor returns the first event of type typ for the named task.
func waitFor(t *testing.T, events <-chan eventbus.Event, typ, name string) TaskEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			ev, ok := e.Data.(TaskEvent)
			if e.Type == typ && ok && ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s of %s", typ, name)
		}
	}
}

func fastRetry() TaskOptions {
	return TaskOptions{RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond}
}

func TestEnqueueBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	err := s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue() = %v, want ErrStopped", err)
	}
}

func TestEnqueueValidatesTask(t *testing.T) {
	t.Parallel()
	s, _ := startEngine(t, Config{})
	if err := s.Enqueue(Task{Name: "x"}); err == nil {
		t.Fatal("expected error for nil Run")
	}
	if err := s.Enqueue(Task{Name: "  ", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for empty Name")
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	s, events := startEngine(t, Config{RetryMax: 3})
	var calls atomic.Int32
	err := s.Enqueue(Task{Name: "flaky", Opt: fastRetry(), Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	}})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	ev := waitFor(t, events, eventbus.TaskFinished, "flaky")
	if ev.Attempts != 3 || ev.Error != "" {
		t.Fatalf("finished event = %+v", ev)
	}
}

func TestNoRetryStopsAfterFirstAttempt(t *testing.T) {
	t.Parallel()
	s, events := startEngine(t, Config{RetryMax: 5})
	var calls atomic.Int32
	_ = s.Enqueue(Task{Name: "permanent", Opt: fastRetry(), Run: func(context.Context) error {
		calls.Add(1)
		return NoRetry(errors.New("ffmpeg missing"))
	}})
	ev := waitFor(t, events, eventbus.TaskFailed, "permanent")
	if ev.Attempts != 1 || calls.Load() != 1 {
		t.Fatalf("attempts = %d, calls = %d", ev.Attempts, calls.Load())
	}
	if ev.Error != "ffmpeg missing" {
		t.Fatalf("error = %q, want unwrapped cause", ev.Error)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	t.Parallel()
	s, events := startEngine(t, Config{})
	_ = s.Enqueue(Task{Name: "boom", Opt: TaskOptions{RetryMax: -1}, Run: func(context.Context) error {
		panic("kaput")
	}})
	ev := waitFor(t, events, eventbus.TaskFailed, "boom")
	if !strings.Contains(ev.Error, "kaput") {
		t.Fatalf("error = %q", ev.Error)
	}
}

func TestOverlapSkipByKey(t *testing.T) {
	t.Parallel()
	s, events := startEngine(t, Config{Workers: 2})
	release := make(chan struct{})
	started := make(chan struct{})
	run := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	if err := s.Enqueue(Task{Name: "media.transcode", Key: "media.transcode:7", Run: run}); err != nil {
		t.Fatalf("first Enqueue() error: %v", err)
	}
	<-started
	err := s.Enqueue(Task{Name: "media.transcode", Key: "media.transcode:7", Run: run})
	if !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second Enqueue() = %v, want ErrOverlapSkip", err)
	}
	if !s.Busy("media.transcode:7") {
		t.Fatal("key should be busy while running")
	}
	close(release)
	waitFor(t, events, eventbus.TaskFinished, "media.transcode")

	// The key is released right after the finished event.
	deadline := time.Now().Add(time.Second)
	for s.Busy("media.transcode:7") {
		if time.Now().After(deadline) {
			t.Fatal("key still busy after completion")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueueFullDrops(t *testing.T) {
	t.Parallel()
	s, _ := startEngine(t, Config{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	defer close(release)

	block := func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}
	if err := s.Enqueue(Task{Name: "a", Run: block}); err != nil {
		t.Fatalf("Enqueue(a) error: %v", err)
	}
	<-started
	if err := s.Enqueue(Task{Name: "b", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Enqueue(b) error: %v", err)
	}
	err := s.Enqueue(Task{Name: "c", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue(c) = %v, want ErrQueueFull", err)
	}
	if snap := s.Snapshot(); snap.DroppedQueueFull != 1 || snap.QueueLen != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestGroupLimitSerializes(t *testing.T) {
	t.Parallel()
	s, _ := startEngine(t, Config{Workers: 3, GroupLimits: map[string]int{"transcode": 1}})
	var running, peak atomic.Int32
	run := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	names := []string{"t1", "t2", "t3"}
	for _, n := range names {
		if err := s.Enqueue(Task{Name: n, Group: "transcode", Run: run}); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", n, err)
		}
	}
	deadline := time.Now().Add(3 * time.Second)
	for len(s.Snapshot().History) < len(names) {
		if time.Now().After(deadline) {
			t.Fatal("tasks did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if p := peak.Load(); p != 1 {
		t.Fatalf("peak concurrency = %d, want 1", p)
	}
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	t.Parallel()
	s, events := startEngine(t, Config{CircuitTripFailures: 2, CircuitBaseDelay: time.Minute})
	fail := func(context.Context) error { return NoRetry(errors.New("db locked")) }
	for i := 0; i < 2; i++ {
		if err := s.Enqueue(Task{Name: "storage.optimize", Run: fail}); err != nil {
			t.Fatalf("Enqueue #%d error: %v", i, err)
		}
		waitFor(t, events, eventbus.TaskFailed, "storage.optimize")
	}
	err := s.Enqueue(Task{Name: "storage.optimize", Run: fail})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Enqueue() = %v, want ErrCircuitOpen", err)
	}
	if snap := s.Snapshot(); snap.CircuitOpen != 1 {
		t.Fatalf("circuit_open = %d", snap.CircuitOpen)
	}
}

func TestApplyResizesPool(t *testing.T) {
	t.Parallel()
	s, events := startEngine(t, Config{Workers: 1})
	s.Apply(context.Background(), Config{Workers: 3, QueueSize: 16})
	if snap := s.Snapshot(); !snap.Running || snap.Workers != 3 || snap.QueueCap != 16 {
		t.Fatalf("snapshot after Apply = %+v", snap)
	}
	_ = s.Enqueue(Task{Name: "after", Run: func(context.Context) error { return nil }})
	waitFor(t, events, eventbus.TaskFinished, "after")
}

func TestBackoffDelayCapped(t *testing.T) {
	t.Parallel()
	opt := TaskOptions{RetryBase: 100 * time.Millisecond, RetryMaxDelay: 300 * time.Millisecond}
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{8, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := backoffDelay(opt, tt.retry, nil); got != tt.want {
			t.Fatalf("backoffDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
	hinted := RetryAfter(errors.New("429"), time.Hour)
	if got := backoffDelayWithHint(opt, 1, hinted, nil); got != opt.RetryMaxDelay {
		t.Fatalf("hinted delay = %v, want cap", got)
	}
}
