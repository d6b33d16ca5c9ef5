package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State tracks the lifecycle of one cache entry.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Key identifies one cached result: an owner plus a window size (trailing
// days for metrics, row limit for recordings).
type Key struct {
	OwnerID string
	Window  int
}

func (k Key) String() string { return fmt.Sprintf("%s:%d", k.OwnerID, k.Window) }

// FetchFunc loads a fresh value for a key from the backend.
type FetchFunc[T any] func(ctx context.Context, key Key) (T, error)

// Entry is a point-in-time copy of one cache slot. Data is retained through
// LOADING and ERROR so consumers can keep rendering their last-known view.
type Entry[T any] struct {
	Data      T
	HasData   bool
	State     State
	Err       string
	FetchedAt time.Time
}

type slot[T any] struct {
	data      T
	hasData   bool
	state     State
	errMsg    string
	fetchedAt time.Time
	gen       uint64
}

// Controller owns the cached results and the staleness/polling policy for
// one fetch function. Concurrent reads of one key converge on a single
// backend fetch.
type Controller[T any] struct {
	fetch        FetchFunc[T]
	staleFor     time.Duration
	pollInterval time.Duration
	logger       *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	slots    map[Key]*slot[T]
	active   bool
	resumeCh chan struct{}
}

func NewController[T any](fetch FetchFunc[T], staleFor, pollInterval time.Duration, logger *zap.Logger) *Controller[T] {
	if staleFor <= 0 {
		staleFor = 15 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller[T]{
		fetch:        fetch,
		staleFor:     staleFor,
		pollInterval: pollInterval,
		logger:       logger,
		slots:        make(map[Key]*slot[T]),
		active:       true,
		resumeCh:     make(chan struct{}),
	}
}

// Get returns the cached entry when it is still within the staleness window,
// otherwise it fetches a fresh value.
func (c *Controller[T]) Get(ctx context.Context, key Key) (Entry[T], error) {
	c.mu.Lock()
	s := c.slotLocked(key)
	if s.state == StateReady && !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < c.staleFor {
		entry := snapshot(s)
		c.mu.Unlock()
		return entry, nil
	}
	c.mu.Unlock()
	return c.Refetch(ctx, key)
}

type fetchOutcome[T any] struct {
	data T
	gen  uint64
}

// Refetch bypasses the staleness window but not the in-flight guard:
// concurrent calls for one key share a single backend fetch. On failure the
// entry moves to ERROR and keeps its last READY data. An invalidation that
// arrives while the fetch is in flight outranks its result: the fetched data
// is installed but the entry stays stale, so the next access fetches again.
func (c *Controller[T]) Refetch(ctx context.Context, key Key) (Entry[T], error) {
	c.mu.Lock()
	s := c.slotLocked(key)
	s.state = StateLoading
	c.mu.Unlock()

	value, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		startGen := c.slotLocked(key).gen
		c.mu.Unlock()

		data, err := c.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		return fetchOutcome[T]{data: data, gen: startGen}, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	s = c.slotLocked(key)
	if err != nil {
		s.state = StateError
		s.errMsg = err.Error()
		return snapshot(s), err
	}
	outcome := value.(fetchOutcome[T])
	s.data = outcome.data
	s.hasData = true
	s.state = StateReady
	s.errMsg = ""
	if s.gen == outcome.gen {
		s.fetchedAt = time.Now()
	} else {
		// Invalidated mid-flight; the data predates the change event.
		s.fetchedAt = time.Time{}
	}
	return snapshot(s), nil
}

// Peek returns the current entry without triggering any fetch.
func (c *Controller[T]) Peek(key Key) Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		return Entry[T]{State: StateEmpty}
	}
	return snapshot(s)
}

// Invalidate marks the entry stale so the next access refetches. It also
// bumps the slot generation so an in-flight fetch cannot mark the entry
// fresh with data read before the change event.
func (c *Controller[T]) Invalidate(key Key) {
	c.mu.Lock()
	if s, ok := c.slots[key]; ok {
		s.fetchedAt = time.Time{}
		s.gen++
	}
	c.mu.Unlock()
}

// Seed installs data for a key as already-stale READY content, letting
// consumers render a mirrored value while the first real fetch runs.
func (c *Controller[T]) Seed(key Key, data T) {
	c.mu.Lock()
	s := c.slotLocked(key)
	if s.state == StateEmpty {
		s.data = data
		s.hasData = true
		s.state = StateReady
	}
	c.mu.Unlock()
}

// Drop removes every entry belonging to an owner, used on sign-out.
func (c *Controller[T]) Drop(ownerID string) {
	c.mu.Lock()
	for key := range c.slots {
		if key.OwnerID == ownerID {
			delete(c.slots, key)
		}
	}
	c.mu.Unlock()
}

// Suspend stops poll ticks until Resume is called.
func (c *Controller[T]) Suspend() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Resume re-enables polling and wakes every poll loop for an immediate
// refetch.
func (c *Controller[T]) Resume() {
	c.mu.Lock()
	if !c.active {
		c.active = true
		close(c.resumeCh)
		c.resumeCh = make(chan struct{})
	}
	c.mu.Unlock()
}

// Run polls the key on the configured interval while the controller is
// active. It returns when ctx is done.
func (c *Controller[T]) Run(ctx context.Context, key Key) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.isActive() {
				continue
			}
			if _, err := c.Refetch(ctx, key); err != nil {
				c.logger.Warn("poll refetch", zap.String("key", key.String()), zap.Error(err))
			}
		case <-c.resumed():
			if _, err := c.Refetch(ctx, key); err != nil {
				c.logger.Warn("resume refetch", zap.String("key", key.String()), zap.Error(err))
			}
		}
	}
}

func (c *Controller[T]) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller[T]) resumed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeCh
}

func (c *Controller[T]) slotLocked(key Key) *slot[T] {
	s, ok := c.slots[key]
	if !ok {
		s = &slot[T]{state: StateEmpty}
		c.slots[key] = s
	}
	return s
}

func snapshot[T any](s *slot[T]) Entry[T] {
	return Entry[T]{
		Data:      s.data,
		HasData:   s.hasData,
		State:     s.state,
		Err:       s.errMsg,
		FetchedAt: s.fetchedAt,
	}
}
