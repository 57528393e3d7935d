package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avasilyev/jobscout/internal/inspect"
	"github.com/avasilyev/jobscout/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Browse tracked postings interactively (TUI)",
	Long:  "Opens a terminal browser over the local database: postings, their alert history, and source health.",
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return inspect.Run(ctx, sqlStore)
}
