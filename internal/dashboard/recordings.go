package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"callscope/internal/cache"
	"callscope/internal/model"
	"callscope/internal/realtime"
)

// RecordingsStore is the slice of the backend store the recordings feed and
// pager read.
type RecordingsStore interface {
	FetchLatestRecordings(ctx context.Context, ownerID string, limit int) ([]model.RecordingRecord, error)
	FetchRecordingsPage(ctx context.Context, ownerID string, offset, pageSize int) ([]model.RecordingRecord, error)
}

// RecordingsView is the read-only recordings state handed to presentation.
type RecordingsView struct {
	Recordings []model.RecordingRecord `json:"recordings"`
	Loading    bool                    `json:"loading"`
	Error      string                  `json:"error,omitempty"`
}

// RecordingsFeedConfig tunes one latest-K recordings feed.
type RecordingsFeedConfig struct {
	OwnerID      string
	Limit        int
	StaleFor     time.Duration
	PollInterval time.Duration
	Debounce     time.Duration
}

// RecordingsFeed keeps the newest recordings fresh. Recordings are
// append-only, so the realtime bridge listens for inserts only and runs a
// short debounce: the user is actively waiting for a call to show up.
type RecordingsFeed struct {
	ctrl   *cache.Controller[[]model.RecordingRecord]
	bridge *realtime.Bridge
	key    cache.Key
	logger *zap.Logger
}

func NewRecordingsFeed(cfg RecordingsFeedConfig, store RecordingsStore, src realtime.Source, logger *zap.Logger) *RecordingsFeed {
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.StaleFor <= 0 {
		cfg.StaleFor = time.Minute
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	key := cache.Key{OwnerID: cfg.OwnerID, Window: cfg.Limit}
	fetch := func(ctx context.Context, key cache.Key) ([]model.RecordingRecord, error) {
		return store.FetchLatestRecordings(ctx, key.OwnerID, key.Window)
	}
	ctrl := cache.NewController(fetch, cfg.StaleFor, cfg.PollInterval, logger)

	feed := &RecordingsFeed{ctrl: ctrl, key: key, logger: logger}

	if src != nil {
		filter := realtime.Filter{
			Table:   "call_recordings",
			OwnerID: cfg.OwnerID,
			Event:   realtime.EventInsert,
		}
		bridge, err := realtime.NewBridge(src, filter, cfg.Debounce, func() {
			ctrl.Invalidate(key)
		}, logger)
		if err != nil {
			logger.Warn("recordings realtime subscribe", zap.Error(err))
		} else {
			feed.bridge = bridge
		}
	}

	return feed
}

// Run performs an initial fetch and then keeps polling until ctx is done.
func (f *RecordingsFeed) Run(ctx context.Context) {
	if _, err := f.ctrl.Get(ctx, f.key); err != nil {
		f.logger.Warn("initial recordings fetch", zap.Error(err))
	}
	f.ctrl.Run(ctx, f.key)
}

// View returns the current state, refetching when the cached entry is stale.
func (f *RecordingsFeed) View(ctx context.Context) RecordingsView {
	entry, _ := f.ctrl.Get(ctx, f.key)
	return recordingsView(entry)
}

// Peek returns the current state without touching the network.
func (f *RecordingsFeed) Peek() RecordingsView {
	return recordingsView(f.ctrl.Peek(f.key))
}

// Refetch forces a fresh fetch, subject only to the in-flight guard.
func (f *RecordingsFeed) Refetch(ctx context.Context) RecordingsView {
	entry, _ := f.ctrl.Refetch(ctx, f.key)
	return recordingsView(entry)
}

// Suspend pauses polling while the consuming view is inactive.
func (f *RecordingsFeed) Suspend() { f.ctrl.Suspend() }

// Resume re-enables polling with an immediate refetch.
func (f *RecordingsFeed) Resume() { f.ctrl.Resume() }

// Close tears down the realtime bridge.
func (f *RecordingsFeed) Close() {
	if f.bridge != nil {
		f.bridge.Close()
	}
}

func recordingsView(entry cache.Entry[[]model.RecordingRecord]) RecordingsView {
	return RecordingsView{
		Recordings: entry.Data,
		Loading:    entry.State == cache.StateLoading || entry.State == cache.StateEmpty,
		Error:      entry.Err,
	}
}

// Pager walks older recordings in fixed-size pages. Fetched pages are kept
// and never refetched: recordings are append-only, so a loaded page is
// immutable. New inserts do not invalidate older pages.
type Pager struct {
	store    RecordingsStore
	ownerID  string
	pageSize int

	mu     sync.Mutex
	pages  [][]model.RecordingRecord
	offset int
	done   bool
}

func NewPager(store RecordingsStore, ownerID string, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Pager{store: store, ownerID: ownerID, pageSize: pageSize}
}

// FetchNextPage loads the next page and advances the cursor. A page shorter
// than the page size closes the cursor; further calls are no-ops.
func (p *Pager) FetchNextPage(ctx context.Context) ([]model.RecordingRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, nil
	}

	page, err := p.store.FetchRecordingsPage(ctx, p.ownerID, p.offset, p.pageSize)
	if err != nil {
		return nil, err
	}
	if len(page) > 0 {
		p.pages = append(p.pages, page)
		p.offset += len(page)
	}
	if len(page) < p.pageSize {
		p.done = true
	}
	return page, nil
}

// HasNextPage reports whether the cursor is still open.
func (p *Pager) HasNextPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.done
}

// All returns every recording fetched so far, newest first.
func (p *Pager) All() []model.RecordingRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []model.RecordingRecord
	for _, page := range p.pages {
		all = append(all, page...)
	}
	return all
}
