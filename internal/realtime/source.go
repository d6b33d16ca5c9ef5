package realtime

import "sync"

// EventType mirrors the backend change feed's event kinds.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// Event is one change notification for an owner-scoped table row.
type Event struct {
	Table   string    `json:"table"`
	Type    EventType `json:"type"`
	OwnerID string    `json:"owner_id"`
}

// Filter selects the events a subscriber wants delivered.
type Filter struct {
	Table   string
	OwnerID string
	Event   EventType
}

// Matches reports whether ev passes the filter. Empty fields and EventAll
// match everything.
func (f Filter) Matches(ev Event) bool {
	if f.Table != "" && ev.Table != f.Table {
		return false
	}
	if f.OwnerID != "" && ev.OwnerID != f.OwnerID {
		return false
	}
	if f.Event != "" && f.Event != EventAll && ev.Type != f.Event {
		return false
	}
	return true
}

// Source is an abstract push channel. Subscribe returns an unsubscribe
// function that must be called on teardown; after it returns, the handler
// will not be invoked again.
type Source interface {
	Subscribe(filter Filter, handler func(Event)) (func(), error)
}

type subscription struct {
	filter  Filter
	handler func(Event)
}

// registry is the shared subscriber table behind the concrete sources.
type registry struct {
	mu   sync.Mutex
	subs map[int]subscription
	next int
}

func (r *registry) add(filter Filter, handler func(Event)) func() {
	r.mu.Lock()
	if r.subs == nil {
		r.subs = make(map[int]subscription)
	}
	id := r.next
	r.next++
	r.subs[id] = subscription{filter: filter, handler: handler}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *registry) dispatch(ev Event) {
	r.mu.Lock()
	handlers := make([]func(Event), 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.filter.Matches(ev) {
			handlers = append(handlers, sub.handler)
		}
	}
	r.mu.Unlock()

	for _, handler := range handlers {
		handler(ev)
	}
}
