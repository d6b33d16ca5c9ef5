package model

import "time"

// MetricsSnapshot is one owner-scoped row of call counters at a point in
// time. Rows are written by the call platform and are immutable; this client
// only reads them.
type MetricsSnapshot struct {
	TotalCalls      int64     `json:"total_calls"`
	OutboundCalls   int64     `json:"outbound_calls"`
	InboundCalls    int64     `json:"inbound_calls"`
	ConversionRate  float64   `json:"conversion_rate"`
	ConsumedMinutes float64   `json:"consumed_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// MetricsDelta holds the percent change per metric between the latest and
// previous snapshots. A nil field means the change is undefined.
type MetricsDelta struct {
	TotalCalls      *float64 `json:"total_calls"`
	OutboundCalls   *float64 `json:"outbound_calls"`
	InboundCalls    *float64 `json:"inbound_calls"`
	ConversionRate  *float64 `json:"conversion_rate"`
	ConsumedMinutes *float64 `json:"consumed_minutes"`
}
