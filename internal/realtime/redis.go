package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"callscope/internal/model"
)

// RedisSource delivers change events over a redis pub/sub channel, for
// deployments where the store's NOTIFY feed is not reachable from the client.
type RedisSource struct {
	registry

	rdb     *goredis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisSource(addr, channel string, logger *zap.Logger) (*RedisSource, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if channel == "" {
		channel = "callscope_events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisSource{rdb: rdb, channel: channel, logger: logger}, nil
}

func (s *RedisSource) Subscribe(filter Filter, handler func(Event)) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	return s.add(filter, handler), nil
}

// Run consumes the pub/sub channel and dispatches events to subscribers
// until ctx is done.
func (s *RedisSource) Run(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, s.channel)

	// Confirms the subscription actually started.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return &model.SubscriptionError{Channel: s.channel, Err: err}
	}

	s.logger.Info("realtime listening", zap.String("channel", s.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok || msg == nil {
				_ = sub.Close()
				return &model.SubscriptionError{Channel: s.channel, Err: fmt.Errorf("pubsub channel closed")}
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("bad pubsub payload", zap.Error(err))
				continue
			}
			s.dispatch(ev)
		}
	}
}

func (s *RedisSource) Close() error {
	return s.rdb.Close()
}
