package realtime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSource struct {
	registry

	mu           sync.Mutex
	unsubscribed int
}

func (s *fakeSource) Subscribe(filter Filter, handler func(Event)) (func(), error) {
	remove := s.add(filter, handler)
	return func() {
		remove()
		s.mu.Lock()
		s.unsubscribed++
		s.mu.Unlock()
	}, nil
}

func (s *fakeSource) emit(ev Event) { s.dispatch(ev) }

func metricsEvent(eventType EventType) Event {
	return Event{Table: "call_metrics", Type: eventType, OwnerID: "owner-1"}
}

func TestBridgeDebouncesBurst(t *testing.T) {
	src := &fakeSource{}
	var invalidations int32

	bridge, err := NewBridge(src,
		Filter{Table: "call_metrics", OwnerID: "owner-1", Event: EventAll},
		30*time.Millisecond,
		func() { atomic.AddInt32(&invalidations, 1) },
		nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	defer bridge.Close()

	for i := 0; i < 5; i++ {
		src.emit(metricsEvent(EventInsert))
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 1 {
		t.Fatalf("burst of 5 events produced %d invalidations, want 1", got)
	}

	// A second, separate event after the quiet period fires again.
	src.emit(metricsEvent(EventUpdate))
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 2 {
		t.Fatalf("expected a second invalidation, got %d", got)
	}
}

func TestBridgeCloseCancelsPendingTimer(t *testing.T) {
	src := &fakeSource{}
	var invalidations int32

	bridge, err := NewBridge(src,
		Filter{Table: "call_metrics", Event: EventAll},
		50*time.Millisecond,
		func() { atomic.AddInt32(&invalidations, 1) },
		nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	src.emit(metricsEvent(EventInsert))
	bridge.Close()
	bridge.Close() // idempotent

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 0 {
		t.Fatalf("pending invalidation fired after close: %d", got)
	}

	src.mu.Lock()
	unsubscribed := src.unsubscribed
	src.mu.Unlock()
	if unsubscribed != 1 {
		t.Fatalf("unsubscribe called %d times, want 1", unsubscribed)
	}

	// A closed bridge no longer reacts even if the source misbehaves.
	src.emit(metricsEvent(EventInsert))
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 0 {
		t.Fatalf("closed bridge invalidated: %d", got)
	}
}

func TestSupersededTimerDoesNotInvalidate(t *testing.T) {
	src := &fakeSource{}
	var invalidations int32

	bridge, err := NewBridge(src,
		Filter{Table: "call_metrics", Event: EventAll},
		50*time.Millisecond,
		func() { atomic.AddInt32(&invalidations, 1) },
		nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	defer bridge.Close()

	src.emit(metricsEvent(EventInsert))

	// A timer whose generation was superseded by a newer event lost the
	// race at the debounce boundary; it must not invalidate on its own.
	bridge.fire(0)
	if got := atomic.LoadInt32(&invalidations); got != 0 {
		t.Fatalf("superseded timer invalidated: %d", got)
	}

	// The current timer still fires exactly once.
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 1 {
		t.Fatalf("invalidations = %d, want 1", got)
	}
}

func TestFilterMatches(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		ev     Event
		want   bool
	}{
		{
			"exact match",
			Filter{Table: "call_metrics", OwnerID: "owner-1", Event: EventInsert},
			metricsEvent(EventInsert),
			true,
		},
		{
			"wildcard event",
			Filter{Table: "call_metrics", OwnerID: "owner-1", Event: EventAll},
			metricsEvent(EventDelete),
			true,
		},
		{
			"insert-only ignores update",
			Filter{Table: "call_recordings", Event: EventInsert},
			Event{Table: "call_recordings", Type: EventUpdate, OwnerID: "owner-1"},
			false,
		},
		{
			"other owner filtered",
			Filter{Table: "call_metrics", OwnerID: "owner-1", Event: EventAll},
			Event{Table: "call_metrics", Type: EventInsert, OwnerID: "owner-2"},
			false,
		},
		{
			"other table filtered",
			Filter{Table: "call_metrics", OwnerID: "owner-1", Event: EventAll},
			Event{Table: "call_recordings", Type: EventInsert, OwnerID: "owner-1"},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(tc.ev); got != tc.want {
				t.Fatalf("Matches(%+v) = %v, want %v", tc.ev, got, tc.want)
			}
		})
	}
}

func TestBridgeHonorsFilter(t *testing.T) {
	src := &fakeSource{}
	var invalidations int32

	bridge, err := NewBridge(src,
		Filter{Table: "call_recordings", OwnerID: "owner-1", Event: EventInsert},
		20*time.Millisecond,
		func() { atomic.AddInt32(&invalidations, 1) },
		nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	defer bridge.Close()

	src.emit(Event{Table: "call_recordings", Type: EventUpdate, OwnerID: "owner-1"})
	src.emit(Event{Table: "call_metrics", Type: EventInsert, OwnerID: "owner-1"})

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 0 {
		t.Fatalf("filtered events invalidated: %d", got)
	}

	src.emit(Event{Table: "call_recordings", Type: EventInsert, OwnerID: "owner-1"})
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&invalidations); got != 1 {
		t.Fatalf("matching insert did not invalidate: %d", got)
	}
}
