package dashboard

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"callscope/internal/model"
	"callscope/internal/realtime"
)

type stubRecordingsStore struct {
	records    []model.RecordingRecord
	latestHits int32
	pageHits   int32
}

func makeRecordings(n int) []model.RecordingRecord {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	records := make([]model.RecordingRecord, n)
	for i := range records {
		records[i] = model.RecordingRecord{
			ID:           int64(n - i),
			OwnerID:      "owner-1",
			CreatedAt:    base.Add(-time.Duration(i) * time.Minute),
			RecordingURL: fmt.Sprintf("https://recordings.example/%d.mp3", n-i),
		}
	}
	return records
}

func (s *stubRecordingsStore) FetchLatestRecordings(ctx context.Context, ownerID string, limit int) ([]model.RecordingRecord, error) {
	atomic.AddInt32(&s.latestHits, 1)
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func (s *stubRecordingsStore) FetchRecordingsPage(ctx context.Context, ownerID string, offset, pageSize int) ([]model.RecordingRecord, error) {
	atomic.AddInt32(&s.pageHits, 1)
	if offset >= len(s.records) {
		return nil, nil
	}
	end := offset + pageSize
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

func TestPagerWalksToEnd(t *testing.T) {
	store := &stubRecordingsStore{records: makeRecordings(45)}
	pager := NewPager(store, "owner-1", 20)

	var sizes []int
	for pager.HasNextPage() {
		page, err := pager.FetchNextPage(context.Background())
		if err != nil {
			t.Fatalf("fetch page: %v", err)
		}
		sizes = append(sizes, len(page))
	}

	want := []int{20, 20, 5}
	if len(sizes) != len(want) {
		t.Fatalf("page count: got %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("page %d size: got %v, want %v", i, sizes, want)
		}
	}

	if all := pager.All(); len(all) != 45 {
		t.Fatalf("accumulated %d records, want 45", len(all))
	}
	if got := atomic.LoadInt32(&store.pageHits); got != 3 {
		t.Fatalf("store hit %d times, want 3", got)
	}

	// The closed cursor makes further calls no-ops.
	page, err := pager.FetchNextPage(context.Background())
	if err != nil || page != nil {
		t.Fatalf("fetch past end: page=%v err=%v", page, err)
	}
	if got := atomic.LoadInt32(&store.pageHits); got != 3 {
		t.Fatalf("no-op fetch hit the store: %d", got)
	}
}

func TestPagerExactMultipleClosesOnEmptyPage(t *testing.T) {
	store := &stubRecordingsStore{records: makeRecordings(40)}
	pager := NewPager(store, "owner-1", 20)

	total := 0
	for pager.HasNextPage() {
		page, err := pager.FetchNextPage(context.Background())
		if err != nil {
			t.Fatalf("fetch page: %v", err)
		}
		total += len(page)
	}
	if total != 40 {
		t.Fatalf("accumulated %d records, want 40", total)
	}
}

func TestRecordingsFeedView(t *testing.T) {
	store := &stubRecordingsStore{records: makeRecordings(30)}
	feed := NewRecordingsFeed(RecordingsFeedConfig{OwnerID: "owner-1", Limit: 20}, store, nil, nil)
	defer feed.Close()

	view := feed.View(context.Background())
	if len(view.Recordings) != 20 {
		t.Fatalf("got %d recordings, want 20", len(view.Recordings))
	}
	if view.Recordings[0].ID != 30 {
		t.Fatalf("newest first expected, got id %d", view.Recordings[0].ID)
	}
	if view.Loading || view.Error != "" {
		t.Fatalf("ready view flagged: loading=%v err=%q", view.Loading, view.Error)
	}

	// Cached within the staleness window.
	feed.View(context.Background())
	if got := atomic.LoadInt32(&store.latestHits); got != 1 {
		t.Fatalf("cached view hit the store %d times", got)
	}
}

func TestRecordingsFeedInsertOnlySubscription(t *testing.T) {
	store := &stubRecordingsStore{records: makeRecordings(5)}
	src := &recordingSource{}

	feed := NewRecordingsFeed(RecordingsFeedConfig{
		OwnerID:  "owner-1",
		Debounce: 20 * time.Millisecond,
	}, store, src, nil)
	defer feed.Close()

	if src.filter.Event != realtime.EventInsert || src.filter.Table != "call_recordings" {
		t.Fatalf("subscription filter = %+v, want insert-only on call_recordings", src.filter)
	}

	feed.View(context.Background())
	src.handler(realtime.Event{Table: "call_recordings", Type: realtime.EventInsert, OwnerID: "owner-1"})
	time.Sleep(100 * time.Millisecond)

	feed.View(context.Background())
	if got := atomic.LoadInt32(&store.latestHits); got != 2 {
		t.Fatalf("after insert invalidation fetches = %d, want 2", got)
	}
}
