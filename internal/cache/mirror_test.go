package cache

import (
	"path/filepath"
	"reflect"
	"testing"
)

type mirrorPayload struct {
	Values []int  `json:"values"`
	Note   string `json:"note"`
}

func TestMirrorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.json")
	m := NewMirror[mirrorPayload](path)
	key := Key{OwnerID: "owner-1", Window: 14}
	payload := mirrorPayload{Values: []int{1, 2, 3}, Note: "latest"}

	if err := m.Save(key, payload); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := m.Load(key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected mirrored data")
	}
	if !reflect.DeepEqual(got, payload) {
		t.Fatalf("round-trip mismatch: %+v != %+v", got, payload)
	}
}

func TestMirrorKeyMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.json")
	m := NewMirror[mirrorPayload](path)

	if err := m.Save(Key{OwnerID: "owner-1", Window: 14}, mirrorPayload{Note: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A different owner or window must not see the mirrored value.
	if _, ok, err := m.Load(Key{OwnerID: "owner-2", Window: 14}); err != nil || ok {
		t.Fatalf("owner mismatch: ok=%v err=%v", ok, err)
	}
	if _, ok, err := m.Load(Key{OwnerID: "owner-1", Window: 7}); err != nil || ok {
		t.Fatalf("window mismatch: ok=%v err=%v", ok, err)
	}
}

func TestMirrorDisabledAndMissing(t *testing.T) {
	disabled := NewMirror[mirrorPayload]("")
	if err := disabled.Save(Key{}, mirrorPayload{}); err != nil {
		t.Fatalf("disabled save: %v", err)
	}
	if _, ok, err := disabled.Load(Key{}); err != nil || ok {
		t.Fatalf("disabled load: ok=%v err=%v", ok, err)
	}

	missing := NewMirror[mirrorPayload](filepath.Join(t.TempDir(), "absent.json"))
	if _, ok, err := missing.Load(Key{}); err != nil || ok {
		t.Fatalf("missing load: ok=%v err=%v", ok, err)
	}
}
