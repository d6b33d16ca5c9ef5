package aggregate

import "callscope/internal/model"

// PercentChange returns the percent change from previous to current. When
// previous is zero the change is zero if current is also zero, otherwise it
// is undefined and nil is returned. No infinity, no divide-by-zero.
func PercentChange(current, previous float64) *float64 {
	if previous == 0 {
		if current == 0 {
			zero := 0.0
			return &zero
		}
		return nil
	}
	value := (current - previous) / abs(previous) * 100
	return &value
}

// ComputeDelta derives the per-field percent change between two snapshots.
// A missing snapshot on either side yields an all-nil delta.
func ComputeDelta(latest, previous *model.MetricsSnapshot) model.MetricsDelta {
	if latest == nil || previous == nil {
		return model.MetricsDelta{}
	}
	return model.MetricsDelta{
		TotalCalls:      PercentChange(float64(latest.TotalCalls), float64(previous.TotalCalls)),
		OutboundCalls:   PercentChange(float64(latest.OutboundCalls), float64(previous.OutboundCalls)),
		InboundCalls:    PercentChange(float64(latest.InboundCalls), float64(previous.InboundCalls)),
		ConversionRate:  PercentChange(latest.ConversionRate, previous.ConversionRate),
		ConsumedMinutes: PercentChange(latest.ConsumedMinutes, previous.ConsumedMinutes),
	}
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}
