package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Timezone string `yaml:"timezone"`

	Portal struct {
		DashboardURL          string `yaml:"dashboard_url"`
		TabPattern            string `yaml:"tab_pattern"`
		ExistingSettleSeconds int    `yaml:"existing_settle_seconds"`
		NewTabSettleSeconds   int    `yaml:"new_tab_settle_seconds"`
	} `yaml:"portal"`

	Browser struct {
		RemoteURL              string `yaml:"remote_url"`
		ExecPath               string `yaml:"exec_path"`
		UserDataDir            string `yaml:"user_data_dir"`
		Headless               bool   `yaml:"headless"`
		NavigateTimeoutSeconds int    `yaml:"navigate_timeout_seconds"`
	} `yaml:"browser"`

	Scheduler struct {
		Spec                string `yaml:"spec"`
		CycleTimeoutSeconds int    `yaml:"cycle_timeout_seconds"`
	} `yaml:"scheduler"`

	Executor struct {
		MaxAttempts           int   `yaml:"max_attempts"`
		RetryDelaysSeconds    []int `yaml:"retry_delays_seconds"`
		ElementTimeoutSeconds int   `yaml:"element_timeout_seconds"`
		PollIntervalMillis    int   `yaml:"poll_interval_ms"`
		ConfirmSettleMillis   int   `yaml:"confirm_settle_ms"`
		ConfirmTimeoutSeconds int   `yaml:"confirm_timeout_seconds"`
	} `yaml:"executor"`

	// Storage selects the settings store: "sqlite" or "redis".
	Storage string `yaml:"storage"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Key      string `yaml:"key"`
	} `yaml:"redis"`

	ScheduleFile string `yaml:"schedule_file"`

	Control struct {
		Enabled       bool   `yaml:"enabled"`
		Address       string `yaml:"address"`
		APIKey        string `yaml:"api_key"`
		RatePerMinute int    `yaml:"rate_per_minute"`
	} `yaml:"control"`

	Telegram struct {
		Enabled      bool    `yaml:"enabled"`
		BotToken     string  `yaml:"bot_token"`
		Debug        bool    `yaml:"debug"`
		AllowedUsers []int64 `yaml:"allowed_users"`
		NotifyChatID int64   `yaml:"notify_chat_id"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Journal struct {
		RetentionDays int    `yaml:"retention_days"`
		ExportDir     string `yaml:"export_dir"`
	} `yaml:"journal"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Default returns a config usable without any file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads path (DefaultPath when empty). A missing file at the default
// path yields Default(); a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Portal.DashboardURL == "" {
		c.Portal.DashboardURL = "https://newstreet.keka.com/#/home/dashboard"
	}
	if c.Portal.TabPattern == "" {
		c.Portal.TabPattern = "https://newstreet.keka.com/*"
	}
	if c.Portal.ExistingSettleSeconds <= 0 {
		c.Portal.ExistingSettleSeconds = 5
	}
	if c.Portal.NewTabSettleSeconds <= 0 {
		c.Portal.NewTabSettleSeconds = 10
	}
	if c.Browser.RemoteURL == "" && c.Browser.UserDataDir == "" {
		c.Browser.UserDataDir = "data/chrome-profile"
	}
	if c.Browser.NavigateTimeoutSeconds <= 0 {
		c.Browser.NavigateTimeoutSeconds = 30
	}
	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = "@every 1m"
	}
	if c.Scheduler.CycleTimeoutSeconds <= 0 {
		c.Scheduler.CycleTimeoutSeconds = 300
	}
	if c.Executor.MaxAttempts <= 0 {
		c.Executor.MaxAttempts = 3
	}
	if len(c.Executor.RetryDelaysSeconds) == 0 {
		c.Executor.RetryDelaysSeconds = []int{2, 4}
	}
	if c.Executor.ElementTimeoutSeconds <= 0 {
		c.Executor.ElementTimeoutSeconds = 15
	}
	if c.Executor.PollIntervalMillis <= 0 {
		c.Executor.PollIntervalMillis = 500
	}
	if c.Executor.ConfirmSettleMillis <= 0 {
		c.Executor.ConfirmSettleMillis = 1000
	}
	if c.Executor.ConfirmTimeoutSeconds <= 0 {
		c.Executor.ConfirmTimeoutSeconds = 5
	}
	if c.Storage == "" {
		c.Storage = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/autoclock.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Control.Address == "" {
		c.Control.Address = "127.0.0.1:8088"
	}
	if c.Control.RatePerMinute <= 0 {
		c.Control.RatePerMinute = 30
	}
	if c.Journal.RetentionDays <= 0 {
		c.Journal.RetentionDays = 90
	}
	if c.Journal.ExportDir == "" {
		c.Journal.ExportDir = "exports"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	switch c.Storage {
	case "sqlite":
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis storage needs redis.address")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram.enabled needs telegram.bot_token")
	}
	return c.validateExecutor()
}

// MaxClickAttempts bounds executor.max_attempts.
const MaxClickAttempts = 3

// validateExecutor keeps the click retry bounded and the backoff growing.
func (c *Config) validateExecutor() error {
	if c.Executor.MaxAttempts < 1 || c.Executor.MaxAttempts > MaxClickAttempts {
		return fmt.Errorf("executor.max_attempts must be between 1 and %d, got %d", MaxClickAttempts, c.Executor.MaxAttempts)
	}
	prev := 0
	for i, d := range c.Executor.RetryDelaysSeconds {
		if d <= prev {
			return fmt.Errorf("executor.retry_delays_seconds must be positive and strictly increasing, got %v at position %d", c.Executor.RetryDelaysSeconds, i)
		}
		prev = d
	}
	return nil
}

// EnsureDirs creates the directories of the configured local paths.
func (c *Config) EnsureDirs() error {
	dirs := []string{filepath.Dir(c.Database.Path)}
	if c.Browser.RemoteURL == "" && c.Browser.UserDataDir != "" {
		dirs = append(dirs, c.Browser.UserDataDir)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Location is the time zone schedules are evaluated in. Empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) ExistingSettle() time.Duration {
	return time.Duration(c.Portal.ExistingSettleSeconds) * time.Second
}

func (c *Config) NewTabSettle() time.Duration {
	return time.Duration(c.Portal.NewTabSettleSeconds) * time.Second
}

func (c *Config) NavigateTimeout() time.Duration {
	return time.Duration(c.Browser.NavigateTimeoutSeconds) * time.Second
}

func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Scheduler.CycleTimeoutSeconds) * time.Second
}

func (c *Config) RetryDelays() []time.Duration {
	out := make([]time.Duration, len(c.Executor.RetryDelaysSeconds))
	for i, s := range c.Executor.RetryDelaysSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

func (c *Config) ElementTimeout() time.Duration {
	return time.Duration(c.Executor.ElementTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Executor.PollIntervalMillis) * time.Millisecond
}

func (c *Config) ConfirmSettle() time.Duration {
	return time.Duration(c.Executor.ConfirmSettleMillis) * time.Millisecond
}

func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Executor.ConfirmTimeoutSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
