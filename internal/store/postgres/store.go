package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"callscope/internal/model"
)

const snapshotColumns = `total_calls, outbound_calls, inbound_calls, conversion_rate, consumed_minutes, created_at`

const recordingColumns = `id, owner_id, created_at, duration_seconds, recording_url`

// Options tunes transport behavior of the store.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Store provides read access to the owner-scoped call tables.
type Store struct {
	pool    *pgxpool.Pool
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool:    pool,
		retries: opts.MaxRetries,
		backoff: opts.RetryBackoff,
		logger:  logger,
	}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying connection pool for collaborators that need
// their own connection, e.g. the LISTEN-based realtime source.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// FetchLatestTwo returns up to two most recent snapshots for an owner,
// newest first.
func (s *Store) FetchLatestTwo(ctx context.Context, ownerID string) ([]model.MetricsSnapshot, error) {
	var snapshots []model.MetricsSnapshot
	err := s.withRetry(ctx, "latest snapshots", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT `+snapshotColumns+`
			FROM call_metrics
			WHERE owner_id = $1
			ORDER BY created_at DESC
			LIMIT 2
		`, ownerID)
		if err != nil {
			return err
		}
		snapshots, err = scanSnapshots(rows)
		return err
	})
	if err != nil {
		return nil, &model.QueryError{Op: "latest snapshots", Err: err}
	}
	return snapshots, nil
}

// FetchWindow returns every snapshot for an owner with created_at >= since,
// newest first. Callers re-sort as needed.
func (s *Store) FetchWindow(ctx context.Context, ownerID string, since time.Time) ([]model.MetricsSnapshot, error) {
	var snapshots []model.MetricsSnapshot
	err := s.withRetry(ctx, "snapshot window", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT `+snapshotColumns+`
			FROM call_metrics
			WHERE owner_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
		`, ownerID, since)
		if err != nil {
			return err
		}
		snapshots, err = scanSnapshots(rows)
		return err
	})
	if err != nil {
		return nil, &model.QueryError{Op: "snapshot window", Err: err}
	}
	return snapshots, nil
}

// FetchLatestRecordings returns the newest recordings for an owner, newest
// first, bounded by limit.
func (s *Store) FetchLatestRecordings(ctx context.Context, ownerID string, limit int) ([]model.RecordingRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recordings []model.RecordingRecord
	err := s.withRetry(ctx, "latest recordings", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT `+recordingColumns+`
			FROM call_recordings
			WHERE owner_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, ownerID, limit)
		if err != nil {
			return err
		}
		recordings, err = scanRecordings(rows)
		return err
	})
	if err != nil {
		return nil, &model.QueryError{Op: "latest recordings", Err: err}
	}
	return recordings, nil
}

// FetchRecordingsPage returns one page of recordings for an owner, newest
// first, starting at the given row offset.
func (s *Store) FetchRecordingsPage(ctx context.Context, ownerID string, offset, pageSize int) ([]model.RecordingRecord, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if offset < 0 {
		offset = 0
	}
	var recordings []model.RecordingRecord
	err := s.withRetry(ctx, "recordings page", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT `+recordingColumns+`
			FROM call_recordings
			WHERE owner_id = $1
			ORDER BY created_at DESC
			OFFSET $2
			LIMIT $3
		`, ownerID, offset, pageSize)
		if err != nil {
			return err
		}
		recordings, err = scanRecordings(rows)
		return err
	})
	if err != nil {
		return nil, &model.QueryError{Op: "recordings page", Err: err}
	}
	return recordings, nil
}

// FetchProfile returns the owner's profile row, or ok=false when none exists.
func (s *Store) FetchProfile(ctx context.Context, ownerID string) (model.Profile, bool, error) {
	var profile model.Profile
	found := false
	err := s.withRetry(ctx, "profile", func(ctx context.Context) error {
		var role, fullName *string
		row := s.pool.QueryRow(ctx, `
			SELECT role, full_name FROM profiles WHERE id = $1
		`, ownerID)
		if err := row.Scan(&role, &fullName); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		profile = model.Profile{ID: ownerID, Role: model.RoleUser}
		if role != nil && *role != "" {
			profile.Role = *role
		}
		if fullName != nil {
			profile.FullName = *fullName
		}
		found = true
		return nil
	})
	if err != nil {
		return model.Profile{}, false, &model.QueryError{Op: "profile", Err: err}
	}
	return profile, found, nil
}
