package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 100, cfg.Queue.Depth)
	assert.True(t, cfg.Automation.Headless)
	assert.Contains(t, cfg.Automation.TargetURL, "vueling.com")
	assert.Contains(t, cfg.Automation.VerifyURL, "RetrieveBooking")
	assert.Equal(t, 45*time.Second, cfg.Automation.StepTimeoutDuration())
	assert.Equal(t, int64(4*1024*1024), cfg.Attachments.MaxTotalSize)
	assert.True(t, cfg.Retention.Enabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reclaim.toml")
	content := `
environment = "production"

[server]
port = 8080

[queue]
workers = 4

[automation]
headless = false
evidence_dir = "/var/lib/reclaim/evidence"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.False(t, cfg.Automation.Headless)
	assert.Equal(t, "/var/lib/reclaim/evidence", cfg.Automation.EvidenceDir)

	// Keys the file does not mention keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 100, cfg.Queue.Depth)
}

func TestLoadFromFilesParsesDurationStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reclaim.toml")
	content := `
[automation]
step_timeout = "20s"
poll_interval = "250ms"

[callback]
timeout = "3s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Automation.StepTimeoutDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.Automation.PollIntervalDuration())
	assert.Equal(t, 3*time.Second, cfg.CallbackTimeout())

	// Durations the file does not mention keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Automation.AttemptTimeoutDuration())
	assert.Equal(t, 2*time.Second, cfg.Automation.SettleWindowDuration())
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")
	require.NoError(t, os.WriteFile(base, []byte("[server]\nport = 8080\nhost = \"10.0.0.1\"\n"), 0o644))
	require.NoError(t, os.WriteFile(local, []byte("[server]\nport = 9090\n"), 0o644))

	cfg, err := LoadFromFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "10.0.0.1", cfg.Server.Host)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/reclaim.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RECLAIM_ENV", "production")
	t.Setenv("RECLAIM_SERVER_PORT", "7070")
	t.Setenv("RECLAIM_QUEUE_WORKERS", "8")
	t.Setenv("RECLAIM_TARGET_URL", "https://example.test/refunds")
	t.Setenv("RECLAIM_LOG_OUTPUT", "stdout, file")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, "https://example.test/refunds", cfg.Automation.TargetURL)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 6060, "127.0.0.1")
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	// Zero values leave the config untouched.
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestDurationHelpers(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.CallbackTimeout())
	assert.Equal(t, 30*time.Second, cfg.AttachmentFetchTimeout())
	assert.Equal(t, 24*time.Hour, cfg.RetentionTTL())

	cfg.Callback.Timeout = "garbage"
	cfg.Attachments.FetchTimeout = "-5s"
	cfg.Retention.TTL = ""
	cfg.Automation.StepTimeout = "not a duration"
	assert.Equal(t, 10*time.Second, cfg.CallbackTimeout(), "falls back on unparsable value")
	assert.Equal(t, 30*time.Second, cfg.AttachmentFetchTimeout(), "falls back on negative value")
	assert.Equal(t, 24*time.Hour, cfg.RetentionTTL(), "falls back on empty value")
	assert.Equal(t, 45*time.Second, cfg.Automation.StepTimeoutDuration(), "falls back on unparsable value")
}
