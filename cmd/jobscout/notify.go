package main

import (
	"context"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/avasilyev/jobscout/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a fabricated match through the configured notifier so the channel can be verified end to end.",
	RunE:  runNotifyTest,
}

var testEmailCmd = &cobra.Command{
	Use:    "test-email",
	Short:  "Send a test notification (alias for notify test)",
	Hidden: true,
	RunE:   runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(testEmailCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.Advanced.HTTPTimeout}
	n, err := setupNotifier(cfg, httpClient, logger)
	if err != nil {
		logger.Error("failed to set up notifier", "error", err)
		os.Exit(1)
	}

	if err := notifier.SendTest(context.Background(), n); err != nil {
		logger.Error("test notification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully")
	return nil
}
