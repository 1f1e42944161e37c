package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestWatchCoalescesBurst(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	var calls atomic.Int32
	release := make(chan struct{})

	w := Watch(context.Background(), hub, Entity("candidates", "u1"), func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil
	})
	defer w.Close()

	hub.Publish(Event{Table: "candidates", OwnerID: "u1"})
	waitFor(t, func() bool { return calls.Load() == 1 })

	for i := 0; i < 5; i++ {
		hub.Publish(Event{Table: "candidates", OwnerID: "u1"})
	}
	close(release)

	waitFor(t, func() bool { return calls.Load() == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected burst coalesced into 2 reads, got %d", got)
	}
}

func TestWatchCloseReleasesSubscription(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	for i := 0; i < 5; i++ {
		w := Watch(context.Background(), hub, Entity("candidates", "u1"), func(context.Context) error { return nil })
		if hub.Active() != 1 {
			t.Fatalf("expected 1 active subscription, got %d", hub.Active())
		}
		w.Close()
		w.Close()
		if hub.Active() != 0 {
			t.Fatalf("cycle %d leaked subscription: %d active", i, hub.Active())
		}
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	w := Watch(ctx, hub, Filter{}, func(context.Context) error { return errors.New("boom") })
	cancel()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}
	if hub.Active() != 0 {
		t.Fatalf("expected subscription released, got %d", hub.Active())
	}
	w.Close()
}

func TestViewLastIssuedSuccessfulReadWins(t *testing.T) {
	t.Parallel()

	slow := make(chan struct{})
	var n atomic.Int32
	view := NewView(func(ctx context.Context) (string, error) {
		switch n.Add(1) {
		case 1:
			<-slow
			return "stale", nil
		case 2:
			return "fresh", nil
		default:
			return "", errors.New("read failed")
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = view.Refresh(context.Background())
	}()
	waitFor(t, func() bool { return n.Load() == 1 })

	if err := view.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	close(slow)
	wg.Wait()

	got, ok := view.Get()
	if !ok || got != "fresh" {
		t.Fatalf("expected fresh value, got %q (loaded=%v)", got, ok)
	}

	if err := view.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error from failing read")
	}
	if got, _ := view.Get(); got != "fresh" {
		t.Fatalf("failed read must not replace value, got %q", got)
	}
}
