package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"callscope/internal/realtime"
)

// Store combines the read surfaces the feeds depend on.
type Store interface {
	MetricsStore
	RecordingsStore
}

// ServiceConfig carries the per-feed settings. OwnerID fields are ignored;
// the service sets them when an owner signs in.
type ServiceConfig struct {
	Metrics    MetricsFeedConfig
	Recordings RecordingsFeedConfig
}

// Service owns the live feeds for the signed-in owner and swaps them out
// when the owner changes: old subscriptions and timers are torn down, old
// cache entries are discarded with the old feeds, and fresh feeds start for
// the new owner. No query is issued while no owner is set.
type Service struct {
	cfg    ServiceConfig
	store  Store
	src    realtime.Source
	logger *zap.Logger

	mu         sync.Mutex
	ownerID    string
	metrics    *MetricsFeed
	recordings *RecordingsFeed
	cancel     context.CancelFunc
}

func NewService(cfg ServiceConfig, store Store, src realtime.Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, store: store, src: src, logger: logger}
}

// SetOwner re-keys every feed to ownerID. An empty owner id (sign-out) only
// tears down. Calling it with the current owner is a no-op.
func (s *Service) SetOwner(ctx context.Context, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == s.ownerID {
		return
	}

	s.teardownLocked()
	s.ownerID = ownerID
	if ownerID == "" {
		return
	}

	metricsCfg := s.cfg.Metrics
	metricsCfg.OwnerID = ownerID
	recordingsCfg := s.cfg.Recordings
	recordingsCfg.OwnerID = ownerID

	s.metrics = NewMetricsFeed(metricsCfg, s.store, s.src, s.logger)
	s.recordings = NewRecordingsFeed(recordingsCfg, s.store, s.src, s.logger)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.metrics.Run(runCtx)
	go s.recordings.Run(runCtx)

	s.logger.Info("feeds started", zap.String("owner_id", ownerID))
}

// Metrics returns the current metrics view without touching the network.
func (s *Service) Metrics() MetricsView {
	s.mu.Lock()
	feed := s.metrics
	s.mu.Unlock()
	if feed == nil {
		return MetricsView{Loading: true}
	}
	return feed.Peek()
}

// Recordings returns the current recordings view without touching the
// network.
func (s *Service) Recordings() RecordingsView {
	s.mu.Lock()
	feed := s.recordings
	s.mu.Unlock()
	if feed == nil {
		return RecordingsView{Loading: true}
	}
	return feed.Peek()
}

// Refetch forces both feeds to refresh, subject to the in-flight guard.
func (s *Service) Refetch(ctx context.Context) {
	s.mu.Lock()
	metrics, recordings := s.metrics, s.recordings
	s.mu.Unlock()
	if metrics != nil {
		metrics.Refetch(ctx)
	}
	if recordings != nil {
		recordings.Refetch(ctx)
	}
}

// Suspend pauses polling on both feeds.
func (s *Service) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Suspend()
	}
	if s.recordings != nil {
		s.recordings.Suspend()
	}
}

// Resume re-enables polling with an immediate refetch on both feeds.
func (s *Service) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Resume()
	}
	if s.recordings != nil {
		s.recordings.Resume()
	}
}

// Close tears down the current feeds.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.ownerID = ""
}

func (s *Service) teardownLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.metrics != nil {
		s.metrics.Close()
		s.metrics = nil
	}
	if s.recordings != nil {
		s.recordings.Close()
		s.recordings = nil
	}
}
