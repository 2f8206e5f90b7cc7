package watcher

import (
	"context"
	"time"
)

type pending struct {
	ev    Event
	gen   uint64
	timer *time.Timer
}

type fired struct {
	path string
	gen  uint64
}

// debouncer collapses bursts of events per path. It is owned by the watcher
// loop and is not safe for concurrent use; timers only post to ready.
type debouncer struct {
	delay   time.Duration
	pending map[string]*pending
	ready   chan fired
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]*pending),
		ready:   make(chan fired, 64),
	}
}

// add schedules ev, replacing any pending event for the same path. The latest
// kind wins, except that writes following a create still report a create.
func (d *debouncer) add(ctx context.Context, ev Event) {
	p, ok := d.pending[ev.Path]
	if !ok {
		p = &pending{}
		d.pending[ev.Path] = p
	} else {
		p.timer.Stop()
		if p.ev.Kind == KindCreated && ev.Kind == KindModified {
			ev.Kind = KindCreated
		}
	}
	p.gen++
	p.ev = ev

	msg := fired{path: ev.Path, gen: p.gen}
	p.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- msg:
		case <-ctx.Done():
		}
	})
}

// take returns the event for a fired timer, or false when a newer event for
// the same path superseded it.
func (d *debouncer) take(f fired) (Event, bool) {
	p, ok := d.pending[f.path]
	if !ok || p.gen != f.gen {
		return Event{}, false
	}
	delete(d.pending, f.path)
	return p.ev, true
}

// stop cancels every pending timer.
func (d *debouncer) stop() {
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

// size returns the number of paths awaiting delivery.
func (d *debouncer) size() int { return len(d.pending) }
