package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"callscope/internal/config"
	"callscope/internal/dashboard"
	"callscope/internal/store/postgres"
)

func runRecordings(cmd *cobra.Command, _ []string) error {
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

	pager := dashboard.NewPager(store, cfg.OwnerID, cfg.PageSize)
	pages := 0
	for pager.HasNextPage() {
		page, err := pager.FetchNextPage(ctx)
		if err != nil {
			return fmt.Errorf("fetch page: %w", err)
		}
		pages++
		logger.Debug("page fetched", zap.Int("page", pages), zap.Int("rows", len(page)))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(pager.All())
}
