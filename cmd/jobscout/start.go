package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/pipeline"
	"github.com/avasilyev/jobscout/internal/scheduler"
	"github.com/avasilyev/jobscout/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scanning daemon",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.ScanInterval.String(),
		"sources", len(cfg.Sources),
		"required_terms", len(cfg.Criteria.Required),
		"keyword_groups", len(cfg.Criteria.Groups),
		"excluded_terms", len(cfg.Criteria.Excluded),
	)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	sqlStore, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := &http.Client{Timeout: cfg.Advanced.HTTPTimeout}
	n, err := setupNotifier(cfg, httpClient, logger)
	if err != nil {
		logger.Error("failed to set up notifier", "error", err)
		os.Exit(1)
	}

	sources := buildSources(cfg, httpClient, logger)
	if len(sources) == 0 {
		logger.Error("no sources to scan")
		os.Exit(1)
	}

	matcher := match.NewMatcher(cfg.Criteria)
	pipe := pipeline.New(sources, sqlStore, matcher, n, cfg.Advanced.MaxJobsPerSource, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(cfg.ScanInterval, scheduler.RunnerFunc(func(ctx context.Context) {
		pipe.Run(ctx)
	}), logger)
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
