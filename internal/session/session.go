package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"callscope/internal/model"
)

// Store is the slice of the backend the session layer reads.
type Store interface {
	FetchProfile(ctx context.Context, ownerID string) (model.Profile, bool, error)
}

// Manager resolves the signed-in owner's profile. It keeps a best-effort
// local mirror and can install a default user-role profile when the profile
// query is slow, so consumers are not blocked on startup.
type Manager struct {
	store        Store
	mirrorPath   string
	fallbackWait time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	profile *model.Profile
}

func NewManager(store Store, mirrorPath string, fallbackWait time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:        store,
		mirrorPath:   mirrorPath,
		fallbackWait: fallbackWait,
		logger:       logger,
	}
}

type fetchResult struct {
	profile model.Profile
	found   bool
	err     error
}

// Resolve loads the profile for ownerID. If the store answers within the
// fallback window the fresh profile wins. Otherwise a default user-role
// profile is returned immediately and the pending answer overwrites the
// current profile when it lands; until then an admin runs with the regular
// user role. A store failure falls back to the local mirror, then to the
// default profile.
func (m *Manager) Resolve(ctx context.Context, ownerID string) (model.Profile, error) {
	if ownerID == "" {
		return model.Profile{}, fmt.Errorf("owner id is required")
	}

	done := make(chan fetchResult, 1)
	go func() {
		profile, found, err := m.store.FetchProfile(ctx, ownerID)
		done <- fetchResult{profile: profile, found: found, err: err}
	}()

	var fallback <-chan time.Time
	if m.fallbackWait > 0 {
		timer := time.NewTimer(m.fallbackWait)
		defer timer.Stop()
		fallback = timer.C
	}

	select {
	case result := <-done:
		return m.settle(ownerID, result)
	case <-fallback:
		profile := model.DefaultProfile(ownerID)
		m.set(profile)
		m.logger.Warn("profile fetch slow, using default role", zap.String("owner_id", ownerID))
		go func() {
			if _, err := m.settle(ownerID, <-done); err != nil {
				m.logger.Warn("late profile fetch", zap.Error(err))
			}
		}()
		return profile, nil
	case <-ctx.Done():
		return model.Profile{}, ctx.Err()
	}
}

// Current returns the most recently resolved profile, if any.
func (m *Manager) Current() (model.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return model.Profile{}, false
	}
	return *m.profile, true
}

// Reset clears the resolved profile on owner change or sign-out.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.profile = nil
	m.mu.Unlock()
}

func (m *Manager) settle(ownerID string, result fetchResult) (model.Profile, error) {
	if result.err != nil {
		if cached, ok := m.loadMirror(ownerID); ok {
			m.set(cached)
			return cached, nil
		}
		profile := model.DefaultProfile(ownerID)
		m.set(profile)
		return profile, result.err
	}
	if !result.found {
		profile := model.DefaultProfile(ownerID)
		m.set(profile)
		m.saveMirror(profile)
		return profile, nil
	}
	m.set(result.profile)
	m.saveMirror(result.profile)
	return result.profile, nil
}

func (m *Manager) set(profile model.Profile) {
	m.mu.Lock()
	m.profile = &profile
	m.mu.Unlock()
}

type mirrorRecord struct {
	Profile   model.Profile `json:"profile"`
	UpdatedAt string        `json:"updated_at"`
}

func (m *Manager) loadMirror(ownerID string) (model.Profile, bool) {
	if m.mirrorPath == "" {
		return model.Profile{}, false
	}
	data, err := os.ReadFile(m.mirrorPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("read profile mirror", zap.Error(err))
		}
		return model.Profile{}, false
	}
	var rec mirrorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("parse profile mirror", zap.Error(err))
		return model.Profile{}, false
	}
	if rec.Profile.ID != ownerID {
		return model.Profile{}, false
	}
	return rec.Profile, true
}

func (m *Manager) saveMirror(profile model.Profile) {
	if m.mirrorPath == "" {
		return
	}
	dir := filepath.Dir(m.mirrorPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.logger.Warn("create mirror dir", zap.Error(err))
			return
		}
	}

	rec := mirrorRecord{
		Profile:   profile,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		m.logger.Warn("marshal profile mirror", zap.Error(err))
		return
	}

	tmp := m.mirrorPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		m.logger.Warn("write profile mirror", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, m.mirrorPath); err != nil {
		m.logger.Warn("rename profile mirror", zap.Error(err))
	}
}
