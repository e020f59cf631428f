// Package events carries transient presentation signals between the engine
// and its consumers. Unlock notifications are time-boxed UI events, not
// ledger state: publishing never blocks the unlock path and a failed or
// missed delivery has no effect on persistence.
package events

import (
	"sync"
	"time"
)

// NotificationDuration is how long an unlock notification stays visible.
const NotificationDuration = 3 * time.Second

// UnlockEvent announces a species newly added to the collection.
type UnlockEvent struct {
	SpeciesID   string
	SpeciesName string
	Message     string
	OccurredAt  time.Time
}

// UnlockNotifier fans unlock events out to subscribers and keeps the
// current notification readable until it expires.
type UnlockNotifier struct {
	mu          sync.Mutex
	subscribers []chan UnlockEvent
	current     *UnlockEvent
	expiry      time.Duration
	timer       *time.Timer
	gen         uint64
}

// NewUnlockNotifier returns a notifier with the standard display duration.
func NewUnlockNotifier() *UnlockNotifier {
	return &UnlockNotifier{expiry: NotificationDuration}
}

// NewUnlockNotifierWithExpiry is for tests that cannot wait three seconds.
func NewUnlockNotifierWithExpiry(expiry time.Duration) *UnlockNotifier {
	return &UnlockNotifier{expiry: expiry}
}

// Publish records ev as the current notification, schedules its expiry and
// delivers it to subscribers without blocking. Slow subscribers miss
// events rather than stalling the caller.
func (n *UnlockNotifier) Publish(ev UnlockEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	n.mu.Lock()
	n.current = &ev
	n.gen++
	gen := n.gen
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.expiry, func() { n.clearCurrent(gen) })
	subs := make([]chan UnlockEvent, len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// clearCurrent drops the notification only if it is still the one the
// timer was armed for. Stop cannot unschedule a timer that has already
// fired and is waiting on the lock, so an expiry that lost the race to a
// newer Publish must leave the newer notification in place.
func (n *UnlockNotifier) clearCurrent(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gen == gen {
		n.current = nil
	}
}

// Current returns the active notification, or nil once it has expired.
func (n *UnlockNotifier) Current() *UnlockEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return nil
	}
	ev := *n.current
	return &ev
}

// Subscribe returns a buffered channel receiving future unlock events.
func (n *UnlockNotifier) Subscribe() <-chan UnlockEvent {
	ch := make(chan UnlockEvent, 8)
	n.mu.Lock()
	n.subscribers = append(n.subscribers, ch)
	n.mu.Unlock()
	return ch
}
