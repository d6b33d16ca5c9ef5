package model

import "fmt"

// QueryError wraps a transport, auth, or query failure from the backend
// store. Callers keep their last-known data and surface the message.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query %s: %v", e.Op, e.Err) }

func (e *QueryError) Unwrap() error { return e.Err }

// AggregationInputError marks a snapshot that cannot participate in
// aggregation, e.g. a missing timestamp. The offending row is skipped, the
// rest of the aggregation proceeds.
type AggregationInputError struct {
	Reason string
}

func (e *AggregationInputError) Error() string { return "aggregate input: " + e.Reason }

// SubscriptionError wraps a realtime channel failure. Polling remains the
// consistency fallback, so subscribers log it instead of failing.
type SubscriptionError struct {
	Channel string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Channel, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
