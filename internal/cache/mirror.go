package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mirror keeps a best-effort local copy of the last fetched value so a
// restart can render immediately while the first fetch is in flight. It is
// never authoritative; loaded data should be seeded as already stale.
type Mirror[T any] struct {
	path    string
	enabled bool
}

type mirrorRecord[T any] struct {
	Key       Key    `json:"key"`
	Data      T      `json:"data"`
	UpdatedAt string `json:"updated_at"`
}

func NewMirror[T any](path string) *Mirror[T] {
	return &Mirror[T]{path: path, enabled: path != ""}
}

func (m *Mirror[T]) Load(key Key) (T, bool, error) {
	var zero T
	if m == nil || !m.enabled {
		return zero, false, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("read mirror: %w", err)
	}

	var rec mirrorRecord[T]
	if err := json.Unmarshal(data, &rec); err != nil {
		return zero, false, fmt.Errorf("parse mirror: %w", err)
	}
	if rec.Key != key {
		return zero, false, nil
	}
	return rec.Data, true, nil
}

func (m *Mirror[T]) Save(key Key, data T) error {
	if m == nil || !m.enabled {
		return nil
	}

	dir := filepath.Dir(m.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create mirror dir: %w", err)
		}
	}

	rec := mirrorRecord[T]{
		Key:       key,
		Data:      data,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal mirror: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write mirror tmp: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("rename mirror: %w", err)
	}
	return nil
}
