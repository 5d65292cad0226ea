package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the YAML file. They may
// also be provided through a .env file in the working directory.
const (
	EnvUsername = "ATTENDFILL_USERNAME"
	EnvPassword = "ATTENDFILL_PASSWORD"
	EnvAPIURL   = "ATTENDFILL_API_URL"
	EnvRegion   = "ATTENDFILL_REGION"
	EnvLogLevel = "ATTENDFILL_LOG_LEVEL"
)

// HolidayFeed is an ICS subscription whose events are treated as extra
// holidays of the configured region.
type HolidayFeed struct {
	// ID is an internal identifier used for logging and cache keys.
	ID string `yaml:"id" json:"id"`
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig protects the daemon status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ScheduleConfig is the work-time policy used to generate records. All values
// are minutes.
type ScheduleConfig struct {
	NormalWorkMinutes  int `yaml:"normal_work_minutes" json:"normal_work_minutes"`
	ReducedWorkMinutes int `yaml:"reduced_work_minutes" json:"reduced_work_minutes"`

	MeanStartMinutes      int `yaml:"mean_start_minutes" json:"mean_start_minutes"`
	StartDeviationMinutes int `yaml:"start_deviation_minutes" json:"start_deviation_minutes"`

	MeanBreakMinutes      int `yaml:"mean_break_minutes" json:"mean_break_minutes"`
	BreakDeviationMinutes int `yaml:"break_deviation_minutes" json:"break_deviation_minutes"`

	// Optional bounds applied to the random draws. Zero means unbounded.
	MinStartMinutes int `yaml:"min_start_minutes,omitempty" json:"min_start_minutes,omitempty"`
	MaxStartMinutes int `yaml:"max_start_minutes,omitempty" json:"max_start_minutes,omitempty"`
	MinBreakMinutes int `yaml:"min_break_minutes,omitempty" json:"min_break_minutes,omitempty"`
	MaxBreakMinutes int `yaml:"max_break_minutes,omitempty" json:"max_break_minutes,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIURL is the base URL of the attendance platform API.
	APIURL string `yaml:"api_url" json:"api_url"`
	// Origin is sent as the Origin header on every request.
	Origin string `yaml:"origin" json:"origin"`

	// Region is the holiday template key authoritative for this user.
	Region string `yaml:"region" json:"region"`

	// Timeout bounds every HTTP request (Go duration, e.g. "30s").
	Timeout string `yaml:"timeout" json:"timeout"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	HolidayFeeds []HolidayFeed `yaml:"holiday_feeds" json:"holiday_feeds"`
	CacheDir     string        `yaml:"cache_dir" json:"cache_dir"`

	// Cron is the daemon schedule (robfig/cron 5-field syntax).
	Cron string `yaml:"cron" json:"cron"`

	// Listen enables the daemon status server when non-empty.
	Listen    string           `yaml:"listen,omitempty" json:"listen,omitempty"`
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CredentialsFile holds the username on line 1 and the password on line 2.
	// Relative paths are resolved against the config file's directory.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

const (
	defaultAPIURL  = "https://api.kenjo.io"
	defaultOrigin  = "https://app.kenjo.io"
	defaultRegion  = "spain-barcelona"
	defaultTimeout = "30s"
	defaultCron    = "0 19 * * 1-5"
)

// DefaultSchedule mirrors the policy the platform accepts: 8h30 on
// Monday-Thursday, 5h on Friday, start around 09:15, break around 1h20.
func DefaultSchedule() ScheduleConfig {
	return ScheduleConfig{
		NormalWorkMinutes:     8*60 + 30,
		ReducedWorkMinutes:    5 * 60,
		MeanStartMinutes:      9*60 + 15,
		StartDeviationMinutes: 15,
		MeanBreakMinutes:      60 + 20,
		BreakDeviationMinutes: 20,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIURL:          defaultAPIURL,
		Origin:          defaultOrigin,
		Region:          defaultRegion,
		Timeout:         defaultTimeout,
		Schedule:        DefaultSchedule(),
		HolidayFeeds:    []HolidayFeed{},
		CacheDir:        "",
		Cron:            defaultCron,
		LogLevel:        "info",
		CredentialsFile: "credentials",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/attendfill/config.yaml (or the OS
// equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "attendfill.yaml"
	}
	return filepath.Join(dir, "attendfill", "config.yaml")
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.Origin == "" {
		c.Origin = defaultOrigin
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
	if c.Cron == "" {
		c.Cron = defaultCron
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	def := DefaultSchedule()
	s := &c.Schedule
	if s.NormalWorkMinutes <= 0 {
		s.NormalWorkMinutes = def.NormalWorkMinutes
	}
	if s.ReducedWorkMinutes <= 0 {
		s.ReducedWorkMinutes = def.ReducedWorkMinutes
	}
	if s.MeanStartMinutes <= 0 {
		s.MeanStartMinutes = def.MeanStartMinutes
	}
	if s.StartDeviationMinutes < 0 {
		s.StartDeviationMinutes = def.StartDeviationMinutes
	}
	if s.MeanBreakMinutes <= 0 {
		s.MeanBreakMinutes = def.MeanBreakMinutes
	}
	if s.BreakDeviationMinutes < 0 {
		s.BreakDeviationMinutes = def.BreakDeviationMinutes
	}

	if c.HolidayFeeds == nil {
		c.HolidayFeeds = []HolidayFeed{}
	}
}

// Validate reports settings that cannot be defaulted away.
func (c *Config) Validate() error {
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	s := c.Schedule
	if s.MaxStartMinutes > 0 && s.MinStartMinutes > s.MaxStartMinutes {
		return fmt.Errorf("schedule: min_start_minutes %d exceeds max_start_minutes %d", s.MinStartMinutes, s.MaxStartMinutes)
	}
	if s.MaxBreakMinutes > 0 && s.MinBreakMinutes > s.MaxBreakMinutes {
		return fmt.Errorf("schedule: min_break_minutes %d exceeds max_break_minutes %d", s.MinBreakMinutes, s.MaxBreakMinutes)
	}
	for i, f := range c.HolidayFeeds {
		if f.URL == "" {
			return fmt.Errorf("holiday_feeds[%d]: url is empty", i)
		}
	}
	return nil
}

// RequestTimeout parses Timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", c.Timeout)
	}
	return d, nil
}

// ApplyEnv overrides fields from the environment. A .env file in the
// working directory is loaded first if present; variables already set in the
// process environment win.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvRegion); v != "" {
		c.Region = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".attendfill-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ResolvePath makes p absolute relative to the directory of the config file.
func ResolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
