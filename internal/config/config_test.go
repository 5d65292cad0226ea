package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "spain-barcelona", cfg.Region)
	assert.Equal(t, 510, cfg.Schedule.NormalWorkMinutes)
	assert.Equal(t, 300, cfg.Schedule.ReducedWorkMinutes)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api_url: https://example.test/\nregion: france-paris\nschedule:\n  mean_start_minutes: 480\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.APIURL)
	assert.Equal(t, "france-paris", cfg.Region)
	assert.Equal(t, 480, cfg.Schedule.MeanStartMinutes)
	assert.Equal(t, 510, cfg.Schedule.NormalWorkMinutes)
	assert.Equal(t, "30s", cfg.Timeout)
	assert.Equal(t, "0 19 * * 1-5", cfg.Cron)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Timeout = "soon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Schedule.MinStartMinutes = 600
	cfg.Schedule.MaxStartMinutes = 500
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.HolidayFeeds = []HolidayFeed{{ID: "x"}}
	assert.Error(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvAPIURL, "http://localhost:9999/")
	t.Setenv(EnvRegion, "france-paris")
	t.Setenv(EnvLogLevel, "")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "http://localhost:9999", cfg.APIURL)
	assert.Equal(t, "france-paris", cfg.Region)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/etc/attendfill", "credentials"), ResolvePath("/etc/attendfill/config.yaml", "credentials"))
	assert.Equal(t, "/abs/creds", ResolvePath("/etc/attendfill/config.yaml", "/abs/creds"))
	assert.Equal(t, "", ResolvePath("/etc/attendfill/config.yaml", ""))
}
