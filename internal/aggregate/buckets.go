package aggregate

import (
	"time"

	"go.uber.org/zap"

	"callscope/internal/model"
)

const (
	dayKeyFormat   = "2006-01-02"
	dayLabelFormat = "Jan 02"
)

type dayTotals struct {
	total    int64
	inbound  int64
	outbound int64
	minutes  float64
}

// Bucketer groups snapshots into a fixed trailing window of calendar days
// ending on the current day.
type Bucketer struct {
	days   int
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewBucketer(days int, loc *time.Location, logger *zap.Logger) *Bucketer {
	if days < 1 {
		days = 1
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bucketer{days: days, loc: loc, now: time.Now, logger: logger}
}

// WindowStart returns midnight of the oldest day in the trailing window.
func (b *Bucketer) WindowStart() time.Time {
	today := startOfDay(b.now().In(b.loc))
	return today.AddDate(0, 0, -(b.days - 1))
}

// Buckets aggregates snapshots by calendar day over the trailing window.
// The result always has exactly b.days entries in chronological order;
// days without snapshots carry zero values. Snapshots with a missing
// timestamp are skipped and logged.
func (b *Bucketer) Buckets(snapshots []model.MetricsSnapshot) []model.DayBucket {
	totals := make(map[string]*dayTotals, b.days)
	for _, snap := range snapshots {
		if snap.CreatedAt.IsZero() {
			b.logger.Warn("skip snapshot",
				zap.Error(&model.AggregationInputError{Reason: "missing created_at"}))
			continue
		}
		key := startOfDay(snap.CreatedAt.In(b.loc)).Format(dayKeyFormat)
		entry := totals[key]
		if entry == nil {
			entry = &dayTotals{}
			totals[key] = entry
		}
		entry.total += snap.TotalCalls
		entry.inbound += snap.InboundCalls
		entry.outbound += snap.OutboundCalls
		entry.minutes += snap.ConsumedMinutes
	}

	start := b.WindowStart()
	buckets := make([]model.DayBucket, 0, b.days)
	for i := 0; i < b.days; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format(dayKeyFormat)
		entry := totals[key]
		if entry == nil {
			entry = &dayTotals{}
		}
		buckets = append(buckets, model.DayBucket{
			Day:             key,
			Label:           day.Format(dayLabelFormat),
			TotalCalls:      entry.total,
			InboundCalls:    entry.inbound,
			OutboundCalls:   entry.outbound,
			ConsumedMinutes: entry.minutes,
		})
	}
	return buckets
}

// LineSeries derives the dual-line chart view from day buckets.
func LineSeries(buckets []model.DayBucket) []model.LinePoint {
	points := make([]model.LinePoint, 0, len(buckets))
	for _, bucket := range buckets {
		points = append(points, model.LinePoint{
			Label:   bucket.Label,
			Total:   bucket.TotalCalls,
			Inbound: bucket.InboundCalls,
		})
	}
	return points
}

// BarSeries derives the single-bar chart view from day buckets.
func BarSeries(buckets []model.DayBucket) []model.BarPoint {
	points := make([]model.BarPoint, 0, len(buckets))
	for _, bucket := range buckets {
		points = append(points, model.BarPoint{
			Label:   bucket.Label,
			Minutes: bucket.ConsumedMinutes,
		})
	}
	return points
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
