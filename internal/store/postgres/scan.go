package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"

	"callscope/internal/model"
)

// The backend tables allow NULLs the typed model does not. Rows are coerced
// here so no untyped or nullable value crosses the store boundary.

func scanSnapshots(rows pgx.Rows) ([]model.MetricsSnapshot, error) {
	defer rows.Close()

	var snapshots []model.MetricsSnapshot
	for rows.Next() {
		var (
			total, outbound, inbound *int64
			conversion, minutes      *float64
			createdAt                *time.Time
		)
		if err := rows.Scan(&total, &outbound, &inbound, &conversion, &minutes, &createdAt); err != nil {
			return nil, err
		}
		snap := model.MetricsSnapshot{
			TotalCalls:      int64Value(total),
			OutboundCalls:   int64Value(outbound),
			InboundCalls:    int64Value(inbound),
			ConversionRate:  float64Value(conversion),
			ConsumedMinutes: float64Value(minutes),
		}
		if createdAt != nil {
			snap.CreatedAt = createdAt.UTC()
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func scanRecordings(rows pgx.Rows) ([]model.RecordingRecord, error) {
	defer rows.Close()

	var recordings []model.RecordingRecord
	for rows.Next() {
		var (
			record    model.RecordingRecord
			createdAt *time.Time
			url       *string
		)
		if err := rows.Scan(&record.ID, &record.OwnerID, &createdAt, &record.DurationSeconds, &url); err != nil {
			return nil, err
		}
		if createdAt != nil {
			record.CreatedAt = createdAt.UTC()
		}
		if url != nil {
			record.RecordingURL = *url
		}
		recordings = append(recordings, record)
	}
	return recordings, rows.Err()
}

func int64Value(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func float64Value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
