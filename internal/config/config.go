package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avasilyev/jobscout/internal/match"
)

// Config is the root configuration for the jobscout scanner.
type Config struct {
	ScanInterval time.Duration
	DatabasePath string
	Sources      []SourceConfig
	Criteria     match.Criteria
	Notification NotificationConfig
	Email        EmailConfig
	RateLimit    RateLimitConfig
	Advanced     AdvancedConfig
}

// SourceConfig describes a single job board to scan.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`    // "greenhouse", "lever" or "ashby"
	Account string `yaml:"account"` // board token / site slug at the provider
	Enabled bool   `yaml:"enabled"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log", "email" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// EmailConfig controls email delivery behavior. Credentials come from the
// environment, not the config file; see SMTPFromEnv.
type EmailConfig struct {
	UseTLS                 bool
	MaxRetries             int
	RetryInitialDelay      time.Duration
	RetryBackoffMultiplier float64
}

// SMTPConfig holds mail server credentials and addressing, loaded from
// environment variables so secrets stay out of the config file.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromName   string
	Recipients []string
}

// RateLimitConfig controls provider-level rate limiting.
type RateLimitConfig struct {
	MinDelay      time.Duration            // minimum gap between requests to the same provider
	KindOverrides map[string]time.Duration // per-provider overrides, keyed by source kind
}

// MinDelayFor returns the configured delay for the given source kind,
// falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(kind string) time.Duration {
	if d, ok := r.KindOverrides[kind]; ok {
		return d
	}
	return r.MinDelay
}

// AdvancedConfig holds knobs most installs never touch.
type AdvancedConfig struct {
	HTTPTimeout      time.Duration
	UserAgent        string
	MaxJobsPerSource int // 0 means unlimited
}

var supportedKinds = map[string]bool{
	"greenhouse": true,
	"lever":      true,
	"ashby":      true,
}

const (
	minScanInterval = 5 * time.Minute
	maxScanInterval = 24 * time.Hour
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations
// as strings).
type rawConfig struct {
	ScanInterval string             `yaml:"scan_interval"`
	DatabasePath string             `yaml:"database_path"`
	Sources      []SourceConfig     `yaml:"sources"`
	Keywords     rawKeywordConfig   `yaml:"keywords"`
	Notification NotificationConfig `yaml:"notification"`
	Email        rawEmailConfig     `yaml:"email"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Advanced     rawAdvancedConfig  `yaml:"advanced"`
}

type rawKeywordConfig struct {
	Required []string   `yaml:"required"`
	Groups   [][]string `yaml:"groups"`
	Excluded []string   `yaml:"excluded"`
}

type rawEmailConfig struct {
	UseTLS                 *bool   `yaml:"use_tls"`
	MaxRetries             *int    `yaml:"max_retries"`
	RetryInitialDelay      string  `yaml:"retry_initial_delay"`
	RetryBackoffMultiplier float64 `yaml:"retry_backoff_multiplier"`
}

type rawRateLimitConfig struct {
	MinDelay      string            `yaml:"min_delay"`
	KindOverrides map[string]string `yaml:"kind_overrides"`
}

type rawAdvancedConfig struct {
	HTTPTimeout      string `yaml:"http_timeout"`
	UserAgent        string `yaml:"user_agent"`
	MaxJobsPerSource int    `yaml:"max_jobs_per_source"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. Any validation failure is fatal: a partially applied
// config scans the wrong things silently.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 30 * time.Minute // default
	if raw.ScanInterval != "" {
		interval, err = time.ParseDuration(raw.ScanInterval)
		if err != nil {
			return nil, fmt.Errorf("parse scan_interval %q: %w", raw.ScanInterval, err)
		}
	}

	criteria, err := match.NewCriteria(raw.Keywords.Required, raw.Keywords.Groups, raw.Keywords.Excluded)
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}

	email := EmailConfig{
		UseTLS:                 true,
		MaxRetries:             3,
		RetryInitialDelay:      2 * time.Second,
		RetryBackoffMultiplier: 2.0,
	}
	if raw.Email.UseTLS != nil {
		email.UseTLS = *raw.Email.UseTLS
	}
	if raw.Email.MaxRetries != nil {
		email.MaxRetries = *raw.Email.MaxRetries
	}
	if raw.Email.RetryInitialDelay != "" {
		email.RetryInitialDelay, err = time.ParseDuration(raw.Email.RetryInitialDelay)
		if err != nil {
			return nil, fmt.Errorf("parse email.retry_initial_delay %q: %w", raw.Email.RetryInitialDelay, err)
		}
	}
	if raw.Email.RetryBackoffMultiplier > 0 {
		email.RetryBackoffMultiplier = raw.Email.RetryBackoffMultiplier
	}

	rateLimitDelay := 1 * time.Second // default
	if raw.RateLimit.MinDelay != "" {
		rateLimitDelay, err = time.ParseDuration(raw.RateLimit.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.min_delay %q: %w", raw.RateLimit.MinDelay, err)
		}
	}

	kindOverrides := make(map[string]time.Duration)
	for kind, rawDelay := range raw.RateLimit.KindOverrides {
		d, err := time.ParseDuration(rawDelay)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.kind_overrides[%q]: %w", kind, err)
		}
		kindOverrides[kind] = d
	}

	httpTimeout := 30 * time.Second // default
	if raw.Advanced.HTTPTimeout != "" {
		httpTimeout, err = time.ParseDuration(raw.Advanced.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse advanced.http_timeout %q: %w", raw.Advanced.HTTPTimeout, err)
		}
	}

	userAgent := raw.Advanced.UserAgent
	if userAgent == "" {
		userAgent = "jobscout/1.0"
	}

	dbPath := raw.DatabasePath
	if dbPath == "" {
		dbPath = "jobscout.db"
	}

	cfg := &Config{
		ScanInterval: interval,
		DatabasePath: dbPath,
		Sources:      raw.Sources,
		Criteria:     criteria,
		Notification: raw.Notification,
		Email:        email,
		RateLimit: RateLimitConfig{
			MinDelay:      rateLimitDelay,
			KindOverrides: kindOverrides,
		},
		Advanced: AdvancedConfig{
			HTTPTimeout:      httpTimeout,
			UserAgent:        userAgent,
			MaxJobsPerSource: raw.Advanced.MaxJobsPerSource,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ScanInterval < minScanInterval || cfg.ScanInterval > maxScanInterval {
		return fmt.Errorf("scan_interval must be between %v and %v, got %v", minScanInterval, maxScanInterval, cfg.ScanInterval)
	}

	enabled := 0
	seen := make(map[string]bool)
	for i, s := range cfg.Sources {
		if s.Kind == "" || s.Account == "" {
			return fmt.Errorf("sources[%d]: kind and account are required", i)
		}
		if !supportedKinds[s.Kind] {
			return fmt.Errorf("sources[%d]: unsupported kind %q (supported: greenhouse, lever, ashby)", i, s.Kind)
		}
		key := s.Kind + "/" + s.Account
		if seen[key] {
			return fmt.Errorf("sources[%d]: duplicate source %s", i, key)
		}
		seen[key] = true
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	switch cfg.Notification.Type {
	case "log", "email", "":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\", \"email\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.Email.MaxRetries < 0 {
		return fmt.Errorf("email.max_retries must not be negative, got %d", cfg.Email.MaxRetries)
	}
	if cfg.Advanced.MaxJobsPerSource < 0 {
		return fmt.Errorf("advanced.max_jobs_per_source must not be negative, got %d", cfg.Advanced.MaxJobsPerSource)
	}

	return nil
}

// Warnings returns non-fatal observations about the loaded config, meant to
// be logged once at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	for _, s := range c.Sources {
		if !s.Enabled {
			warnings = append(warnings, fmt.Sprintf("source %s/%s is disabled and will be skipped", s.Kind, s.Account))
		}
	}
	if c.ScanInterval < 15*time.Minute {
		warnings = append(warnings, fmt.Sprintf("scan_interval %v is aggressive; job boards rarely update that often", c.ScanInterval))
	}
	if c.Advanced.MaxJobsPerSource > 0 {
		warnings = append(warnings, fmt.Sprintf("max_jobs_per_source=%d: sources with more postings will be truncated", c.Advanced.MaxJobsPerSource))
	}
	return warnings
}

// SMTPFromEnv loads mail credentials from the environment. Missing host or
// recipients is an error; the caller decides whether that is fatal, since
// only the email notifier needs these.
func SMTPFromEnv() (SMTPConfig, error) {
	smtp := SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		FromName: os.Getenv("ALERT_FROM_NAME"),
		Port:     587,
	}

	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return smtp, fmt.Errorf("parse SMTP_PORT %q: %w", portStr, err)
		}
		smtp.Port = port
	}

	for _, addr := range strings.Split(os.Getenv("ALERT_TO_EMAIL"), ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			smtp.Recipients = append(smtp.Recipients, addr)
		}
	}

	if smtp.FromName == "" {
		smtp.FromName = "jobscout"
	}

	if smtp.Host == "" {
		return smtp, fmt.Errorf("SMTP_HOST is not set")
	}
	if len(smtp.Recipients) == 0 {
		return smtp, fmt.Errorf("ALERT_TO_EMAIL is not set")
	}

	return smtp, nil
}
