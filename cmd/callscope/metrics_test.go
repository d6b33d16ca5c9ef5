package main

import (
	"testing"
	"time"

	"callscope/internal/model"
)

func TestLatestView(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	latest := model.MetricsSnapshot{TotalCalls: 150, ConversionRate: 0.3, CreatedAt: now}
	previous := model.MetricsSnapshot{TotalCalls: 100, ConversionRate: 0.2, CreatedAt: now.Add(-time.Hour)}

	out := latestView([]model.MetricsSnapshot{latest, previous})
	if out.Latest == nil || out.Latest.TotalCalls != 150 {
		t.Fatalf("latest = %+v", out.Latest)
	}
	if out.Previous == nil || out.Previous.TotalCalls != 100 {
		t.Fatalf("previous = %+v", out.Previous)
	}
	if out.Deltas.TotalCalls == nil || *out.Deltas.TotalCalls != 50 {
		t.Fatalf("total calls delta = %v", out.Deltas.TotalCalls)
	}

	out = latestView([]model.MetricsSnapshot{latest})
	if out.Previous != nil {
		t.Fatalf("single snapshot produced a previous: %+v", out.Previous)
	}
	if out.Deltas.TotalCalls != nil {
		t.Fatalf("single snapshot produced a delta: %v", *out.Deltas.TotalCalls)
	}

	out = latestView(nil)
	if out.Latest != nil || out.Previous != nil {
		t.Fatalf("empty input produced snapshots: %+v", out)
	}
}
