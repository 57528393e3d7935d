package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/model"
	"github.com/avasilyev/jobscout/internal/pipeline"
	"github.com/avasilyev/jobscout/internal/store"
)

var dryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle, then exit",
	Long:  "One-shot scan: fetches every enabled source, alerts on matches, exits. With --dry-run nothing is persisted, so every match prints as new.",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan without persisting; matches are printed, not recorded")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var jobStore model.JobStore
	if dryRun {
		logger.Info("dry-run mode enabled, nothing will be persisted")
		jobStore = store.NewNopStore()
	} else {
		sqlStore, err := store.Open(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		jobStore = sqlStore
	}

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
	pipe := pipeline.New(sources, jobStore, matcher, n, cfg.Advanced.MaxJobsPerSource, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := pipe.Run(ctx)
	totals := result.Totals()
	logger.Info("scan complete",
		"fetched", totals.Fetched,
		"new", totals.New,
		"changed", totals.Changed,
		"matched", totals.Matched,
		"notified", totals.Notified,
		"failed_sources", result.FailedSources(),
	)
	if result.FailedSources() > 0 {
		os.Exit(1)
	}
	return nil
}
