package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"callscope/internal/model"
	"callscope/internal/realtime"
)

type ownerStore struct {
	mu     sync.Mutex
	owners []string
}

func (s *ownerStore) record(ownerID string) {
	s.mu.Lock()
	s.owners = append(s.owners, ownerID)
	s.mu.Unlock()
}

func (s *ownerStore) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.owners...)
}

func (s *ownerStore) FetchWindow(ctx context.Context, ownerID string, since time.Time) ([]model.MetricsSnapshot, error) {
	s.record(ownerID)
	return []model.MetricsSnapshot{{TotalCalls: 1, CreatedAt: time.Now().UTC()}}, nil
}

func (s *ownerStore) FetchLatestRecordings(ctx context.Context, ownerID string, limit int) ([]model.RecordingRecord, error) {
	s.record(ownerID)
	return nil, nil
}

func (s *ownerStore) FetchRecordingsPage(ctx context.Context, ownerID string, offset, pageSize int) ([]model.RecordingRecord, error) {
	s.record(ownerID)
	return nil, nil
}

type countingSource struct {
	mu           sync.Mutex
	subscribed   int
	unsubscribed int
}

func (s *countingSource) Subscribe(filter realtime.Filter, handler func(realtime.Event)) (func(), error) {
	s.mu.Lock()
	s.subscribed++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.unsubscribed++
		s.mu.Unlock()
	}, nil
}

func (s *countingSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed, s.unsubscribed
}

func TestServiceSetOwnerSwapsFeeds(t *testing.T) {
	store := &ownerStore{}
	src := &countingSource{}
	svc := NewService(ServiceConfig{
		Metrics:    MetricsFeedConfig{StaleFor: time.Hour, Location: time.UTC},
		Recordings: RecordingsFeedConfig{StaleFor: time.Hour},
	}, store, src, nil)
	defer svc.Close()

	ctx := context.Background()
	svc.SetOwner(ctx, "owner-1")
	svc.Refetch(ctx)

	for _, owner := range store.seen() {
		if owner != "owner-1" {
			t.Fatalf("query for owner %q before swap", owner)
		}
	}
	if subs, unsubs := src.counts(); subs != 2 || unsubs != 0 {
		t.Fatalf("subscriptions = %d/%d, want 2/0", subs, unsubs)
	}

	svc.SetOwner(ctx, "owner-2")
	svc.Refetch(ctx)

	if subs, unsubs := src.counts(); subs != 4 || unsubs != 2 {
		t.Fatalf("after swap subscriptions = %d/%d, want 4/2", subs, unsubs)
	}
	seen := store.seen()
	if seen[len(seen)-1] != "owner-2" {
		t.Fatalf("last query for owner %q, want owner-2", seen[len(seen)-1])
	}
}

func TestServiceSignOutTearsDown(t *testing.T) {
	store := &ownerStore{}
	src := &countingSource{}
	svc := NewService(ServiceConfig{
		Metrics:    MetricsFeedConfig{StaleFor: time.Hour, Location: time.UTC},
		Recordings: RecordingsFeedConfig{StaleFor: time.Hour},
	}, store, src, nil)

	ctx := context.Background()
	svc.SetOwner(ctx, "owner-1")
	svc.Refetch(ctx)
	before := len(store.seen())

	svc.SetOwner(ctx, "")
	if _, unsubs := src.counts(); unsubs != 2 {
		t.Fatalf("unsubscribes after sign-out = %d, want 2", unsubs)
	}

	// Views degrade to empty loading state and issue no queries.
	if view := svc.Metrics(); !view.Loading || view.Latest != nil {
		t.Fatalf("metrics view after sign-out = %+v", view)
	}
	svc.Refetch(ctx)
	if got := len(store.seen()); got != before {
		t.Fatalf("queries after sign-out = %d, want %d", got, before)
	}
}

func TestServiceSetOwnerSameOwnerNoop(t *testing.T) {
	store := &ownerStore{}
	src := &countingSource{}
	svc := NewService(ServiceConfig{
		Metrics:    MetricsFeedConfig{StaleFor: time.Hour, Location: time.UTC},
		Recordings: RecordingsFeedConfig{StaleFor: time.Hour},
	}, store, src, nil)
	defer svc.Close()

	ctx := context.Background()
	svc.SetOwner(ctx, "owner-1")
	svc.SetOwner(ctx, "owner-1")

	if subs, unsubs := src.counts(); subs != 2 || unsubs != 0 {
		t.Fatalf("subscriptions = %d/%d, want 2/0", subs, unsubs)
	}
}
