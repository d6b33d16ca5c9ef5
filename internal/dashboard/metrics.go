package dashboard

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"callscope/internal/aggregate"
	"callscope/internal/cache"
	"callscope/internal/model"
	"callscope/internal/realtime"
)

// MetricsStore is the slice of the backend store the metrics feed reads.
type MetricsStore interface {
	FetchWindow(ctx context.Context, ownerID string, since time.Time) ([]model.MetricsSnapshot, error)
}

// MetricsView is the read-only state handed to presentation. Presentation
// has no mutation entry points besides Refetch on the feed.
type MetricsView struct {
	Latest     *model.MetricsSnapshot `json:"latest"`
	Previous   *model.MetricsSnapshot `json:"previous"`
	Deltas     model.MetricsDelta     `json:"deltas"`
	Buckets    []model.DayBucket      `json:"buckets"`
	LineSeries []model.LinePoint      `json:"line_series"`
	BarSeries  []model.BarPoint       `json:"bar_series"`
	Loading    bool                   `json:"loading"`
	Error      string                 `json:"error,omitempty"`
}

// metricsData is the cached payload per (owner, window-days) key. One window
// query feeds both the latest/previous slots and the day buckets.
type metricsData struct {
	Latest   *model.MetricsSnapshot `json:"latest"`
	Previous *model.MetricsSnapshot `json:"previous"`
	Buckets  []model.DayBucket      `json:"buckets"`
}

// MetricsFeedConfig tunes one metrics feed.
type MetricsFeedConfig struct {
	OwnerID      string
	WindowDays   int
	StaleFor     time.Duration
	PollInterval time.Duration
	Debounce     time.Duration
	MirrorPath   string
	Location     *time.Location
}

// MetricsFeed keeps the unified call-metrics view fresh through polling and
// debounced realtime invalidation.
type MetricsFeed struct {
	ctrl   *cache.Controller[metricsData]
	bridge *realtime.Bridge
	key    cache.Key
	logger *zap.Logger
}

// NewMetricsFeed wires the store, aggregator, cache, and realtime bridge for
// one owner. src may be nil for polling-only operation; a subscribe failure
// degrades to polling-only as well.
func NewMetricsFeed(cfg MetricsFeedConfig, store MetricsStore, src realtime.Source, logger *zap.Logger) *MetricsFeed {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bucketer := aggregate.NewBucketer(cfg.WindowDays, cfg.Location, logger)
	mirror := cache.NewMirror[metricsData](cfg.MirrorPath)
	key := cache.Key{OwnerID: cfg.OwnerID, Window: cfg.WindowDays}

	fetch := func(ctx context.Context, key cache.Key) (metricsData, error) {
		snapshots, err := store.FetchWindow(ctx, key.OwnerID, bucketer.WindowStart())
		if err != nil {
			return metricsData{}, err
		}
		data := buildMetricsData(bucketer, snapshots)
		if err := mirror.Save(key, data); err != nil {
			logger.Warn("mirror save", zap.Error(err))
		}
		return data, nil
	}

	ctrl := cache.NewController(fetch, cfg.StaleFor, cfg.PollInterval, logger)

	if seed, ok, err := mirror.Load(key); err != nil {
		logger.Warn("mirror load", zap.Error(err))
	} else if ok {
		ctrl.Seed(key, seed)
	}

	feed := &MetricsFeed{ctrl: ctrl, key: key, logger: logger}

	if src != nil {
		filter := realtime.Filter{
			Table:   "call_metrics",
			OwnerID: cfg.OwnerID,
			Event:   realtime.EventAll,
		}
		bridge, err := realtime.NewBridge(src, filter, cfg.Debounce, func() {
			ctrl.Invalidate(key)
		}, logger)
		if err != nil {
			logger.Warn("metrics realtime subscribe", zap.Error(err))
		} else {
			feed.bridge = bridge
		}
	}

	return feed
}

// Run performs an initial fetch and then keeps polling until ctx is done.
func (f *MetricsFeed) Run(ctx context.Context) {
	if _, err := f.ctrl.Get(ctx, f.key); err != nil {
		f.logger.Warn("initial metrics fetch", zap.Error(err))
	}
	f.ctrl.Run(ctx, f.key)
}

// View returns the current state, refetching when the cached entry is stale.
func (f *MetricsFeed) View(ctx context.Context) MetricsView {
	entry, _ := f.ctrl.Get(ctx, f.key)
	return viewFromEntry(entry)
}

// Peek returns the current state without touching the network.
func (f *MetricsFeed) Peek() MetricsView {
	return viewFromEntry(f.ctrl.Peek(f.key))
}

// Refetch forces a fresh fetch, subject only to the in-flight guard.
func (f *MetricsFeed) Refetch(ctx context.Context) MetricsView {
	entry, _ := f.ctrl.Refetch(ctx, f.key)
	return viewFromEntry(entry)
}

// Suspend pauses polling while the consuming view is inactive.
func (f *MetricsFeed) Suspend() { f.ctrl.Suspend() }

// Resume re-enables polling with an immediate refetch.
func (f *MetricsFeed) Resume() { f.ctrl.Resume() }

// Close tears down the realtime bridge: pending debounce timers are canceled
// and the channel unsubscribed. An in-flight fetch finishes on its own and
// lands in the shared cache.
func (f *MetricsFeed) Close() {
	if f.bridge != nil {
		f.bridge.Close()
	}
}

func buildMetricsData(bucketer *aggregate.Bucketer, snapshots []model.MetricsSnapshot) metricsData {
	// Newest first for the latest/previous slots; the bucketer re-groups by
	// day regardless of order.
	ordered := make([]model.MetricsSnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	data := metricsData{Buckets: bucketer.Buckets(snapshots)}
	if len(ordered) > 0 {
		latest := ordered[0]
		data.Latest = &latest
	}
	if len(ordered) > 1 {
		previous := ordered[1]
		data.Previous = &previous
	}
	return data
}

func viewFromEntry(entry cache.Entry[metricsData]) MetricsView {
	return MetricsView{
		Latest:     entry.Data.Latest,
		Previous:   entry.Data.Previous,
		Deltas:     aggregate.ComputeDelta(entry.Data.Latest, entry.Data.Previous),
		Buckets:    entry.Data.Buckets,
		LineSeries: aggregate.LineSeries(entry.Data.Buckets),
		BarSeries:  aggregate.BarSeries(entry.Data.Buckets),
		Loading:    entry.State == cache.StateLoading || entry.State == cache.StateEmpty,
		Error:      entry.Err,
	}
}
