package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"callscope/internal/config"
	"callscope/internal/dashboard"
	"callscope/internal/realtime"
	"callscope/internal/session"
	"callscope/internal/store/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "callscope",
		Short:        "Call-center metrics sync client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("owner", "", "owner (user) id")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Int("max-retries", 3, "maximum query retry attempts")
	root.PersistentFlags().Duration("retry-backoff", 500*time.Millisecond, "initial query retry backoff")
	root.PersistentFlags().String("timezone", "", "IANA timezone for day bucketing (default local)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live metrics and recordings sync daemon",
		RunE:  runDaemon,
	}

	runCmd.Flags().Int("window-days", 14, "trailing day window for the metrics series")
	runCmd.Flags().Duration("poll-interval", 30*time.Second, "polling interval while active")
	runCmd.Flags().Duration("stale-for", 15*time.Second, "staleness window for cached metrics")
	runCmd.Flags().Duration("metrics-debounce", 3*time.Second, "debounce for metrics realtime events")
	runCmd.Flags().Duration("recordings-debounce", 500*time.Millisecond, "debounce for recording inserts")
	runCmd.Flags().Int("recordings-limit", 20, "latest recordings to keep fresh")
	runCmd.Flags().String("realtime", config.RealtimePostgres, "realtime source (postgres, redis, off)")
	runCmd.Flags().String("notify-channel", "callscope_events", "Postgres NOTIFY channel")
	runCmd.Flags().String("redis-addr", "", "redis address for realtime=redis")
	runCmd.Flags().String("redis-channel", "callscope_events", "redis pub/sub channel")
	runCmd.Flags().String("mirror-dir", "", "directory for best-effort local mirrors")
	runCmd.Flags().Duration("profile-fallback", 400*time.Millisecond, "wait before assuming the default role (0 disables)")

	root.AddCommand(runCmd)

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Fetch the current metrics view once and print it as JSON",
		RunE:  runMetrics,
	}

	metricsCmd.Flags().Int("window-days", 14, "trailing day window for the metrics series")
	metricsCmd.Flags().String("mirror-dir", "", "directory for best-effort local mirrors")
	metricsCmd.Flags().Bool("latest-only", false, "fetch only the latest two snapshots and their deltas")

	root.AddCommand(metricsCmd)

	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Page through all recordings and print them as JSON",
		RunE:  runRecordings,
	}

	recordingsCmd.Flags().Int("page-size", 20, "rows per page")

	root.AddCommand(recordingsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	sessions := session.NewManager(store, mirrorPath(cfg.MirrorDir, "profile.json"), cfg.ProfileFallback, logger)
	profile, err := sessions.Resolve(ctx, cfg.OwnerID)
	if err != nil {
		logger.Warn("profile resolve", zap.Error(err))
	}
	logger.Info("session ready", zap.String("owner_id", profile.ID), zap.String("role", profile.Role))

	src, err := newRealtimeSource(ctx, cfg, store, logger)
	if err != nil {
		logger.Warn("realtime unavailable, polling only", zap.Error(err))
		src = nil
	}

	svc := dashboard.NewService(dashboard.ServiceConfig{
		Metrics: dashboard.MetricsFeedConfig{
			WindowDays:   cfg.WindowDays,
			StaleFor:     cfg.StaleFor,
			PollInterval: cfg.PollInterval,
			Debounce:     cfg.MetricsDebounce,
			MirrorPath:   mirrorPath(cfg.MirrorDir, "metrics.json"),
			Location:     loc,
		},
		Recordings: dashboard.RecordingsFeedConfig{
			Limit:        cfg.RecordingsLimit,
			PollInterval: cfg.PollInterval,
			Debounce:     cfg.RecordingsDebounce,
		},
	}, store, src, logger)
	defer svc.Close()

	logger.Info("daemon start",
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("owner_id", cfg.OwnerID),
		zap.Int("window_days", cfg.WindowDays),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("realtime", cfg.Realtime),
	)

	svc.SetOwner(ctx, profile.ID)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stop")
			return nil
		case <-ticker.C:
			logView(logger, svc.Metrics(), svc.Recordings())
		}
	}
}

func logView(logger *zap.Logger, metrics dashboard.MetricsView, recordings dashboard.RecordingsView) {
	fields := []zap.Field{
		zap.Int("buckets", len(metrics.Buckets)),
		zap.Int("recordings", len(recordings.Recordings)),
	}
	if metrics.Latest != nil {
		fields = append(fields,
			zap.Int64("total_calls", metrics.Latest.TotalCalls),
			zap.Float64("conversion_rate", metrics.Latest.ConversionRate),
		)
	}
	if metrics.Deltas.TotalCalls != nil {
		fields = append(fields, zap.Float64("total_calls_delta_pct", *metrics.Deltas.TotalCalls))
	}
	if metrics.Error != "" {
		fields = append(fields, zap.String("metrics_error", metrics.Error))
	}
	if recordings.Error != "" {
		fields = append(fields, zap.String("recordings_error", recordings.Error))
	}
	logger.Info("view", fields...)
}

// newRealtimeSource builds and starts the configured event source. The Run
// loop logs its exit: a dead source degrades the daemon to polling only.
func newRealtimeSource(ctx context.Context, cfg config.Config, store *postgres.Store, logger *zap.Logger) (realtime.Source, error) {
	switch cfg.Realtime {
	case config.RealtimeOff:
		return nil, nil
	case config.RealtimeRedis:
		src, err := realtime.NewRedisSource(cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			return nil, err
		}
		go func() {
			defer src.Close()
			if err := src.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("redis realtime stopped", zap.Error(err))
			}
		}()
		return src, nil
	default:
		src, err := realtime.NewPostgresSource(store.Pool(), cfg.NotifyChannel, logger)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := src.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("postgres realtime stopped", zap.Error(err))
			}
		}()
		return src, nil
	}
}

func mirrorPath(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
