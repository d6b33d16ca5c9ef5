package model

// DayBucket accumulates every snapshot that falls on one calendar day.
type DayBucket struct {
	Day             string  `json:"day"`
	Label           string  `json:"label"`
	TotalCalls      int64   `json:"total_calls"`
	InboundCalls    int64   `json:"inbound_calls"`
	OutboundCalls   int64   `json:"outbound_calls"`
	ConsumedMinutes float64 `json:"consumed_minutes"`
}

// LinePoint is the dual-line chart view of a day bucket.
type LinePoint struct {
	Label   string `json:"name"`
	Total   int64  `json:"total"`
	Inbound int64  `json:"inbound"`
}

// BarPoint is the single-bar chart view of a day bucket.
type BarPoint struct {
	Label   string  `json:"name"`
	Minutes float64 `json:"minutes"`
}
