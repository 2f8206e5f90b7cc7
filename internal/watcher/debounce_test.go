package watcher

import (
	"context"
	"testing"
	"time"
)

func collectFired(t *testing.T, d *debouncer, wait time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(wait)
	for {
		select {
		case f := <-d.ready:
			if ev, ok := d.take(f); ok {
				out = append(out, ev)
			}
		case <-deadline:
			return out
		}
	}
}

func TestDebouncer_CollapsesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(50 * time.Millisecond)
	for range 3 {
		d.add(ctx, Event{Kind: KindModified, Path: "/r/a.md"})
		time.Sleep(10 * time.Millisecond)
	}

	got := collectFired(t, d, 300*time.Millisecond)
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1: %+v", len(got), got)
	}
	if got[0].Kind != KindModified {
		t.Errorf("kind = %s", got[0].Kind)
	}
	if d.size() != 0 {
		t.Errorf("pending = %d after delivery", d.size())
	}
}

func TestDebouncer_LatestKindWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(30 * time.Millisecond)
	d.add(ctx, Event{Kind: KindModified, Path: "/r/a.md"})
	d.add(ctx, Event{Kind: KindDeleted, Path: "/r/a.md"})
	d.add(ctx, Event{Kind: KindCreated, Path: "/r/b.md"})
	d.add(ctx, Event{Kind: KindModified, Path: "/r/b.md"})

	got := collectFired(t, d, 200*time.Millisecond)
	kinds := map[string]Kind{}
	for _, ev := range got {
		kinds[ev.Path] = ev.Kind
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if kinds["/r/a.md"] != KindDeleted {
		t.Errorf("a.md kind = %s, want deleted", kinds["/r/a.md"])
	}
	if kinds["/r/b.md"] != KindCreated {
		t.Errorf("b.md kind = %s, want created", kinds["/r/b.md"])
	}
}

func TestDebouncer_StopCancelsTimers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(30 * time.Millisecond)
	d.add(ctx, Event{Kind: KindCreated, Path: "/r/a.md"})
	d.stop()

	if got := collectFired(t, d, 100*time.Millisecond); len(got) != 0 {
		t.Fatalf("expected no events after stop, got %+v", got)
	}
}
