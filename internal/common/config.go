package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Queue       QueueConfig       `toml:"queue"`
	Automation  AutomationConfig  `toml:"automation"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Callback    CallbackConfig    `toml:"callback"`
	Retention   RetentionConfig   `toml:"retention"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// QueueConfig controls the in-process job queue and worker pool
type QueueConfig struct {
	Workers int `toml:"workers"` // Number of concurrent job workers
	Depth   int `toml:"depth"`   // Buffered queue capacity before Submit blocks
}

// AutomationConfig contains browser automation behaviour for the refund flow.
// Durations are duration strings (e.g. "45s", "1500ms") parsed through the
// XxxDuration helpers, which fall back to the defaults on garbage.
type AutomationConfig struct {
	TargetURL       string `toml:"target_url"`        // Refund claim page hosting the conversational widget
	VerifyURL       string `toml:"verify_url"`        // Retrieve-booking page used for booking verification
	UserAgent       string `toml:"user_agent"`        // User agent string for browser sessions
	Headless        bool   `toml:"headless"`          // Run Chrome headless
	NoSandbox       bool   `toml:"no_sandbox"`        // Disable Chrome sandbox (required in most containers)
	StepTimeout     string `toml:"step_timeout"`      // Overall budget per step
	AttemptTimeout  string `toml:"attempt_timeout"`   // Budget per resolution-strategy attempt
	PageLoadTimeout string `toml:"page_load_timeout"` // Navigation timeout
	RetryBackoff    string `toml:"retry_backoff"`     // Sleep between step retry attempts
	MinActionDelay  string `toml:"min_action_delay"`  // Lower bound of the randomized inter-action delay
	MaxActionDelay  string `toml:"max_action_delay"`  // Upper bound of the randomized inter-action delay
	PollInterval    string `toml:"poll_interval"`     // Content-change detector poll interval
	SettleWindow    string `toml:"settle_window"`     // Debounce window after new content is detected
	EvidenceDir     string `toml:"evidence_dir"`      // Root directory for per-job evidence screenshots
}

// StepTimeoutDuration parses the per-step budget, falling back to 45s
func (a AutomationConfig) StepTimeoutDuration() time.Duration {
	return durationOr(a.StepTimeout, 45*time.Second)
}

// AttemptTimeoutDuration parses the per-attempt budget, falling back to 5s
func (a AutomationConfig) AttemptTimeoutDuration() time.Duration {
	return durationOr(a.AttemptTimeout, 5*time.Second)
}

// PageLoadTimeoutDuration parses the navigation timeout, falling back to 60s
func (a AutomationConfig) PageLoadTimeoutDuration() time.Duration {
	return durationOr(a.PageLoadTimeout, 60*time.Second)
}

// RetryBackoffDuration parses the retry backoff, falling back to 3s
func (a AutomationConfig) RetryBackoffDuration() time.Duration {
	return durationOr(a.RetryBackoff, 3*time.Second)
}

// MinActionDelayDuration parses the lower pacing bound, falling back to 1.5s
func (a AutomationConfig) MinActionDelayDuration() time.Duration {
	return durationOr(a.MinActionDelay, 1500*time.Millisecond)
}

// MaxActionDelayDuration parses the upper pacing bound, falling back to 3.5s
func (a AutomationConfig) MaxActionDelayDuration() time.Duration {
	return durationOr(a.MaxActionDelay, 3500*time.Millisecond)
}

// PollIntervalDuration parses the detector poll interval, falling back to 500ms
func (a AutomationConfig) PollIntervalDuration() time.Duration {
	return durationOr(a.PollInterval, 500*time.Millisecond)
}

// SettleWindowDuration parses the detector debounce window, falling back to 2s
func (a AutomationConfig) SettleWindowDuration() time.Duration {
	return durationOr(a.SettleWindow, 2*time.Second)
}

// AttachmentsConfig controls claim document resolution
type AttachmentsConfig struct {
	Dir          string   `toml:"dir"`            // Root directory for per-job downloaded documents
	MaxTotalSize int64    `toml:"max_total_size"` // Total size ceiling in bytes across a job's documents
	AllowedExts  []string `toml:"allowed_exts"`   // Lowercase file extensions accepted for upload
	FetchTimeout string   `toml:"fetch_timeout"`  // Per-document download timeout, e.g. "30s"
}

// CallbackConfig controls best-effort status notifications
type CallbackConfig struct {
	Timeout   string  `toml:"timeout"`    // HTTP timeout for a single callback delivery, e.g. "10s"
	RateRPS   float64 `toml:"rate_rps"`   // Max callback deliveries per second (0 = unlimited)
	RateBurst int     `toml:"rate_burst"` // Burst allowance for the callback rate limiter
}

// RetentionConfig controls the housekeeping janitor
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule (with seconds field)
	TTL      string `toml:"ttl"`      // How long terminal job records and dirs are kept, e.g. "24h"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in reclaim.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 5000,
			Host: "0.0.0.0",
		},
		Queue: QueueConfig{
			Workers: 2,   // Each worker owns a full browser session; keep small
			Depth:   100, // Queued claim IDs before Submit blocks
		},
		Automation: AutomationConfig{
			TargetURL:       "https://www.vueling.com/en/we-are-vueling/contact/management?helpCenterFlow=RefundJustifiedReasons",
			VerifyURL:       "https://tickets.vueling.com/RetrieveBooking.aspx?event=change&culture=en-GB",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Headless:        true,
			NoSandbox:       true,
			StepTimeout:     "45s",
			AttemptTimeout:  "5s",
			PageLoadTimeout: "60s",
			RetryBackoff:    "3s",
			MinActionDelay:  "1500ms",
			MaxActionDelay:  "3500ms",
			PollInterval:    "500ms",
			SettleWindow:    "2s",
			EvidenceDir:     "./data/evidence",
		},
		Attachments: AttachmentsConfig{
			Dir:          "./data/attachments",
			MaxTotalSize: 4 * 1024 * 1024, // 4MB across all documents of one claim
			AllowedExts:  []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".tiff", ".tif"},
			FetchTimeout: "30s",
		},
		Callback: CallbackConfig{
			Timeout:   "10s",
			RateRPS:   5,
			RateBurst: 10,
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "0 */10 * * * *", // Every 10 minutes
			TTL:      "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env -> CLI flags.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RECLAIM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("RECLAIM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RECLAIM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if workers := os.Getenv("RECLAIM_QUEUE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Queue.Workers = w
		}
	}

	if url := os.Getenv("RECLAIM_TARGET_URL"); url != "" {
		config.Automation.TargetURL = url
	}
	if url := os.Getenv("RECLAIM_VERIFY_URL"); url != "" {
		config.Automation.VerifyURL = url
	}
	if headless := os.Getenv("RECLAIM_HEADLESS"); headless != "" {
		config.Automation.Headless = strings.EqualFold(headless, "true") || headless == "1"
	}
	if dir := os.Getenv("RECLAIM_EVIDENCE_DIR"); dir != "" {
		config.Automation.EvidenceDir = dir
	}

	if dir := os.Getenv("RECLAIM_ATTACHMENTS_DIR"); dir != "" {
		config.Attachments.Dir = dir
	}

	if level := os.Getenv("RECLAIM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("RECLAIM_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// IsProduction returns true when the environment is configured as production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// CallbackTimeout parses the configured callback timeout, falling back to 10s
func (c *Config) CallbackTimeout() time.Duration {
	return durationOr(c.Callback.Timeout, 10*time.Second)
}

// AttachmentFetchTimeout parses the configured fetch timeout, falling back to 30s
func (c *Config) AttachmentFetchTimeout() time.Duration {
	return durationOr(c.Attachments.FetchTimeout, 30*time.Second)
}

// RetentionTTL parses the configured retention TTL, falling back to 24h
func (c *Config) RetentionTTL() time.Duration {
	return durationOr(c.Retention.TTL, 24*time.Hour)
}

// durationOr parses a duration string, substituting the fallback for empty,
// malformed, or non-positive values.
func durationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
