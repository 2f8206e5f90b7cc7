// Package notify fans out watcher lifecycle and sync notifications to
// in-process subscribers such as the CLI renderer.
package notify

import (
	"sync/atomic"
	"time"
)

// Kind names a notification.
type Kind string

const (
	WatcherStarted Kind = "watcher.started"
	WatcherStopped Kind = "watcher.stopped"
	WatcherEvent   Kind = "watcher.event"

	SyncWritten   Kind = "sync.written"
	SyncSkipped   Kind = "sync.skipped"
	SyncFailed    Kind = "sync.failed"
	SyncCompleted Kind = "sync.completed"

	// VaultChanged is published at most once per throttle interval after writes.
	VaultChanged Kind = "vault.changed"
)

// Notification is one published message.
type Notification struct {
	Kind   Kind      `json:"kind"`
	Path   string    `json:"path,omitempty"`
	Target string    `json:"target,omitempty"`
	Detail string    `json:"detail,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
	Time   time.Time `json:"time"`
}

// Publisher is implemented by Broker. A nil Publisher is never called.
type Publisher interface {
	Publish(n Notification)
}

// Broker manages subscribers and broadcasts notifications.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (subscribers + change throttle timestamp). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	changeMin time.Duration

	subscribeCh   chan chan Notification
	unsubscribeCh chan chan Notification
	publishCh     chan Notification
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewBroker creates a broker that emits VaultChanged at most once per throttle.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		changeMin:     throttle,
		subscribeCh:   make(chan chan Notification),
		unsubscribeCh: make(chan chan Notification),
		publishCh:     make(chan Notification, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan Notification]struct{})
	var lastChange time.Time

	broadcast := func(n Notification) {
		for ch := range subs {
			select {
			case ch <- n:
			default:
				// Subscriber buffer full; skip to avoid blocking the loop.
				b.dropped.Add(1)
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			subs[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case n := <-b.publishCh:
			broadcast(n)
			if n.Kind != SyncWritten {
				continue
			}
			if n.Time.Sub(lastChange) >= b.changeMin {
				lastChange = n.Time
				broadcast(Notification{Kind: VaultChanged, Target: n.Target, RunID: n.RunID, Time: n.Time})
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close gracefully stops the broker loop and closes all subscriber channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a subscriber and returns its channel.
func (b *Broker) Subscribe() chan Notification {
	ch := make(chan Notification, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan Notification) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of subscribers.
func (b *Broker) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

// Publish sends n to all subscribers. A zero Time is set to now.
func (b *Broker) Publish(n Notification) {
	if b.closed.Load() {
		return
	}
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	select {
	case b.publishCh <- n:
	case <-b.stopped:
	}
}
