package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"callscope/internal/model"
)

// PostgresSource delivers change events via LISTEN/NOTIFY. Row triggers on
// the watched tables are expected to NOTIFY the channel with a JSON payload
// carrying table, type, and owner_id.
type PostgresSource struct {
	registry

	pool    *pgxpool.Pool
	channel string
	logger  *zap.Logger
}

func NewPostgresSource(pool *pgxpool.Pool, channel string, logger *zap.Logger) (*PostgresSource, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if channel == "" {
		channel = "callscope_events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{pool: pool, channel: channel, logger: logger}, nil
}

func (s *PostgresSource) Subscribe(filter Filter, handler func(Event)) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	return s.add(filter, handler), nil
}

// Run holds a dedicated connection on LISTEN and dispatches notifications to
// subscribers until ctx is done. A transport failure is returned as a
// SubscriptionError; the caller keeps polling as the consistency fallback.
func (s *PostgresSource) Run(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return &model.SubscriptionError{Channel: s.channel, Err: err}
	}
	defer conn.Release()

	listen := "LISTEN " + pgx.Identifier{s.channel}.Sanitize()
	if _, err := conn.Exec(ctx, listen); err != nil {
		return &model.SubscriptionError{Channel: s.channel, Err: err}
	}

	s.logger.Info("realtime listening", zap.String("channel", s.channel))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &model.SubscriptionError{Channel: s.channel, Err: err}
		}

		var ev Event
		if err := json.Unmarshal([]byte(notification.Payload), &ev); err != nil {
			s.logger.Warn("bad notify payload", zap.String("payload", notification.Payload), zap.Error(err))
			continue
		}
		s.dispatch(ev)
	}
}
