package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestQueryErrorUnwrap(t *testing.T) {
	root := errors.New("connection refused")
	err := fmt.Errorf("fetch window: %w", &QueryError{Op: "fetch window", Err: root})

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError in chain")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected root cause in chain")
	}
}

func TestSubscriptionErrorMessage(t *testing.T) {
	err := &SubscriptionError{Channel: "callscope_events", Err: errors.New("eof")}
	want := "subscription callscope_events: eof"
	if err.Error() != want {
		t.Fatalf("message mismatch: %q != %q", err.Error(), want)
	}
}
