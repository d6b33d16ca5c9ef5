package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"callscope/internal/aggregate"
	"callscope/internal/config"
	"callscope/internal/dashboard"
	"callscope/internal/model"
	"callscope/internal/store/postgres"
)

func runMetrics(cmd *cobra.Command, _ []string) error {
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

	if latestOnly, _ := cmd.Flags().GetBool("latest-only"); latestOnly {
		snapshots, err := store.FetchLatestTwo(ctx, cfg.OwnerID)
		if err != nil {
			return fmt.Errorf("fetch latest: %w", err)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(latestView(snapshots))
	}

	feed := dashboard.NewMetricsFeed(dashboard.MetricsFeedConfig{
		OwnerID:    cfg.OwnerID,
		WindowDays: cfg.WindowDays,
		MirrorPath: mirrorPath(cfg.MirrorDir, "metrics.json"),
		Location:   loc,
	}, store, nil, logger)
	defer feed.Close()

	view := feed.Refetch(ctx)
	if view.Error != "" {
		return fmt.Errorf("fetch metrics: %s", view.Error)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

// latestDeltas is the deltas-only output: latest/previous snapshots and the
// percent change per metric, without the day-bucket series.
type latestDeltas struct {
	Latest   *model.MetricsSnapshot `json:"latest"`
	Previous *model.MetricsSnapshot `json:"previous"`
	Deltas   model.MetricsDelta     `json:"deltas"`
}

func latestView(snapshots []model.MetricsSnapshot) latestDeltas {
	var out latestDeltas
	if len(snapshots) > 0 {
		out.Latest = &snapshots[0]
	}
	if len(snapshots) > 1 {
		out.Previous = &snapshots[1]
	}
	out.Deltas = aggregate.ComputeDelta(out.Latest, out.Previous)
	return out
}
