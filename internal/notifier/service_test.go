package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"archsite/internal/eventbus"
	logx "archsite/pkg/logx"
)

type fakeSender struct {
	mu      sync.Mutex
	failFor int // fail this many calls first
	calls   int
	sent    chan string
}

func newFakeSender(failFor int) *fakeSender {
	return &fakeSender{failFor: failFor, sent: make(chan string, 16)}
}

func (f *fakeSender) SendText(ctx context.Context, text string) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failFor
	f.mu.Unlock()
	if fail {
		return errors.New("telegram: 502")
	}
	f.sent <- text
	return nil
}

func startNotifier(t *testing.T, cfg Config, sender Sender, bus eventbus.Bus) *Service {
	t.Helper()
	s := New(cfg, sender, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return ""
	}
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()
	sender := newFakeSender(0)
	s := startNotifier(t, Config{Enabled: true, RatePerSec: 100}, sender, nil)

	if err := s.Notify(context.Background(), Notification{Kind: "contact", Priority: PriorityInfo, Text: "New message from Lina"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	got := receive(t, sender.sent)
	if !strings.HasSuffix(got, "New message from Lina") || !strings.HasPrefix(got, "ℹ️") {
		t.Fatalf("sent %q", got)
	}

	deadline := time.Now().Add(time.Second)
	for len(s.History()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("history not updated")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h := s.History(); h[0].Kind != "contact" {
		t.Fatalf("history = %+v", h)
	}
}

func TestNotifyRetries(t *testing.T) {
	t.Parallel()
	sender := newFakeSender(2)
	s := startNotifier(t, Config{Enabled: true, RatePerSec: 100, RetryMax: 3, RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond}, sender, nil)
	if err := s.Notify(context.Background(), Notification{Kind: "transcode", Priority: PriorityAlert, Text: "transcode failed"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	receive(t, sender.sent)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.calls != 3 {
		t.Fatalf("calls = %d, want 3", sender.calls)
	}
}

func TestNotifyDedupWithinWindow(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	sender := newFakeSender(0)
	s := startNotifier(t, Config{Enabled: true, RatePerSec: 100, DedupWindow: time.Minute}, sender, bus)

	n := Notification{Kind: "transcode", Priority: PriorityWarn, Text: "video.mov failed"}
	for i := 0; i < 3; i++ {
		if err := s.Notify(context.Background(), n); err != nil {
			t.Fatalf("Notify #%d error: %v", i, err)
		}
	}
	receive(t, sender.sent)

	deduped := 0
	timeout := time.After(time.Second)
	for deduped < 2 {
		select {
		case e := <-events:
			if e.Type == eventbus.NotifyDeduped {
				deduped++
			}
		case <-timeout:
			t.Fatalf("deduped events = %d, want 2", deduped)
		}
	}
}

func TestNotifyDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{}, newFakeSender(0), logx.Nop(), nil)
	s.Start(context.Background())
	if err := s.Notify(context.Background(), Notification{Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Notify() = %v, want ErrDisabled", err)
	}
	if s.Enabled() {
		t.Fatal("Enabled() should be false")
	}
}

func TestNotifyAfterStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, newFakeSender(0), logx.Nop(), nil)
	s.Start(context.Background())
	s.Stop(context.Background())
	if err := s.Notify(context.Background(), Notification{Text: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Notify() = %v, want ErrStopped", err)
	}
}

func TestDedupCapEvictsEarliest(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop(), nil)
	now := time.Now()
	s.dedupAllow(now, "a", time.Minute, 2)
	s.dedupAllow(now, "b", 2*time.Minute, 2)
	s.dedupAllow(now, "c", 3*time.Minute, 2)
	if _, ok := s.dedup["a"]; ok || len(s.dedup) != 2 {
		t.Fatalf("dedup = %v", s.dedup)
	}
}
