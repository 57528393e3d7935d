package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avasilyev/jobscout/internal/adapter"
	"github.com/avasilyev/jobscout/internal/config"
	"github.com/avasilyev/jobscout/internal/model"
	"github.com/avasilyev/jobscout/internal/notifier"
	"github.com/avasilyev/jobscout/internal/pipeline"
	"github.com/avasilyev/jobscout/internal/ratelimit"
	"github.com/avasilyev/jobscout/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Job board scanner — keyword alerts for new and changed postings",
	Long:  "Jobscout scans job boards on a schedule, matches postings against your keyword criteria, and alerts you once per posting version.",
	// Default to `start` so that `jobscout` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSCOUT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSCOUT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSCOUT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.Notifier, error) {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger), nil
	case "email":
		smtp, err := config.SMTPFromEnv()
		if err != nil {
			return nil, err
		}
		n, err := notifier.NewEmailNotifier(smtp, cfg.Email, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using email notifier", "host", smtp.Host, "recipients", len(smtp.Recipients))
		return n, nil
	default:
		return notifier.NewLogNotifier(logger), nil
	}
}

func createFetcher(src config.SourceConfig, userAgent string, httpClient *http.Client, logger *slog.Logger) (model.PostingFetcher, bool) {
	switch src.Kind {
	case "greenhouse":
		return adapter.NewGreenhouseAdapter(src.Account, src.Name, userAgent, httpClient), true
	case "lever":
		return adapter.NewLeverAdapter(src.Account, src.Name, userAgent, httpClient), true
	case "ashby":
		return adapter.NewAshbyAdapter(src.Account, src.Name, userAgent, httpClient), true
	default:
		logger.Warn("unsupported source kind, skipping", "source", src.Name, "kind", src.Kind)
		return nil, false
	}
}

func buildSources(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []pipeline.Source {
	// Shared provider-level rate limiter — all sources on the same board
	// provider share this instance.
	limiter := ratelimit.NewProviderRateLimiter(cfg.RateLimit.MinDelayFor)
	logger.Info("rate limiter configured", "min_delay", cfg.RateLimit.MinDelay.String())

	var sources []pipeline.Source
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}

		fetcher, ok := createFetcher(src, cfg.Advanced.UserAgent, httpClient, logger)
		if !ok {
			continue
		}

		fetcher = retry.NewRetryFetcher(fetcher, 2, 5*time.Second, logger)
		fetcher = ratelimit.NewRateLimitedFetcher(fetcher, limiter, src.Kind)

		sources = append(sources, pipeline.Source{
			Name:    src.Name,
			Kind:    src.Kind,
			Account: src.Account,
			Fetcher: fetcher,
		})
		logger.Info("registered source", "name", src.Name, "kind", src.Kind, "account", src.Account)
	}
	return sources
}
