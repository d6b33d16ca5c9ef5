package model

import "time"

// RecordingRecord is one append-only call recording row. Rows are inserted
// externally and never updated or deleted by this client.
type RecordingRecord struct {
	ID              int64     `json:"id"`
	OwnerID         string    `json:"owner_id"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds *int64    `json:"duration_seconds"`
	RecordingURL    string    `json:"recording_url"`
}
