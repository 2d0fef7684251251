// Package config holds the agenda configuration file model.
//
// The file is YAML, by default at $XDG_CONFIG_HOME/agenda/config.yaml. Load
// reads and normalizes it, Save writes it with 0600 permissions. The same
// struct is the decode target of the viper settings in cmd, so the yaml and
// mapstructure tags must stay in step.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/timezone"
	"github.com/teemow/agenda/internal/views"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultMinSlot          = 30 * time.Minute
	DefaultSearchWindowDays = 30
	DefaultRefreshSchedule  = "*/15 * * * *"
	DefaultHTTPAddr         = "127.0.0.1:8080"
	DefaultMetricsAddr      = "127.0.0.1:9090"
)

// Config is the top-level configuration.
type Config struct {
	// Timezone is the default display zone; empty means the system zone.
	Timezone string `yaml:"timezone,omitempty" mapstructure:"timezone"`

	Sources Sources        `yaml:"sources" mapstructure:"sources"`
	Source  SourceSettings `yaml:"source" mapstructure:"source"`
	Views   Views          `yaml:"views" mapstructure:"views"`
	Log     Log            `yaml:"log" mapstructure:"log"`
	Server  Server         `yaml:"server" mapstructure:"server"`
}

// Sources lists the calendar backends.
type Sources struct {
	Google []GoogleAccount `yaml:"google,omitempty" mapstructure:"google"`
	ICS    []ICSFeed       `yaml:"ics,omitempty" mapstructure:"ics"`
}

// GoogleAccount is one authorized Google account.
type GoogleAccount struct {
	// Account names the token file; letters, digits, '-' and '_'.
	Account string `yaml:"account" mapstructure:"account"`

	// CredentialsFile is the OAuth client JSON from the Google Cloud console.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`

	// DisableTasks leaves Google Tasks out of this account.
	DisableTasks bool `yaml:"disable_tasks,omitempty" mapstructure:"disable_tasks"`
}

// ICSFeed is one iCalendar feed.
type ICSFeed struct {
	Name  string `yaml:"name" mapstructure:"name"`
	URL   string `yaml:"url" mapstructure:"url"`
	Color string `yaml:"color,omitempty" mapstructure:"color"`
}

// SourceSettings applies to every source.
type SourceSettings struct {
	// Timeout bounds each source call.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Views configures the derived views.
type Views struct {
	// WorkdayStart and WorkdayEnd ("09:00", "17:30") narrow the free slots of
	// the daily summary to working hours. Both empty means the whole day.
	WorkdayStart string `yaml:"workday_start,omitempty" mapstructure:"workday_start"`
	WorkdayEnd   string `yaml:"workday_end,omitempty" mapstructure:"workday_end"`

	// MinSlot is the default minimum free slot.
	MinSlot time.Duration `yaml:"min_slot" mapstructure:"min_slot"`

	// SearchWindowDays is how far ahead search looks when no range is given.
	SearchWindowDays int `yaml:"search_window_days" mapstructure:"search_window_days"`
}

// Log configures the stderr logger.
type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Server configures serve mode.
type Server struct {
	HTTPAddr        string `yaml:"http_addr" mapstructure:"http_addr"`
	MetricsAddr     string `yaml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
	RefreshSchedule string `yaml:"refresh_schedule" mapstructure:"refresh_schedule"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in zero values with defaults.
func (c *Config) Normalize() {
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = DefaultTimeout
	}
	if c.Views.MinSlot <= 0 {
		c.Views.MinSlot = DefaultMinSlot
	}
	if c.Views.SearchWindowDays <= 0 {
		c.Views.SearchWindowDays = DefaultSearchWindowDays
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = logging.FormatText
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.RefreshSchedule == "" {
		c.Server.RefreshSchedule = DefaultRefreshSchedule
	}
	for i := range c.Sources.Google {
		if c.Sources.Google[i].Account == "" {
			c.Sources.Google[i].Account = "default"
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Timezone != "" {
		if _, err := timezone.NewResolver().Resolve(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if _, err := c.Views.Summary(); err != nil {
		return err
	}

	accounts := make(map[string]bool)
	for i, g := range c.Sources.Google {
		if accounts[g.Account] {
			return fmt.Errorf("sources.google[%d]: duplicate account %q", i, g.Account)
		}
		accounts[g.Account] = true
		if g.CredentialsFile == "" {
			return fmt.Errorf("sources.google[%d]: credentials_file is required", i)
		}
	}

	names := make(map[string]bool)
	for i, f := range c.Sources.ICS {
		if f.Name == "" {
			return fmt.Errorf("sources.ics[%d]: name is required", i)
		}
		if f.URL == "" {
			return fmt.Errorf("sources.ics[%d]: url is required", i)
		}
		if names[f.Name] {
			return fmt.Errorf("sources.ics[%d]: duplicate name %q", i, f.Name)
		}
		names[f.Name] = true
	}
	return nil
}

// Summary returns the daily summary settings.
func (v Views) Summary() (views.SummaryOptions, error) {
	opts := views.SummaryOptions{MinSlot: v.MinSlot}
	if v.WorkdayStart == "" && v.WorkdayEnd == "" {
		return opts, nil
	}
	start, err := clockOffset(v.WorkdayStart, 0)
	if err != nil {
		return opts, fmt.Errorf("views.workday_start: %w", err)
	}
	end, err := clockOffset(v.WorkdayEnd, 24*time.Hour)
	if err != nil {
		return opts, fmt.Errorf("views.workday_end: %w", err)
	}
	if end <= start {
		return opts, errors.New("views.workday_end must be after views.workday_start")
	}
	opts.WorkdayStart, opts.WorkdayEnd = start, end
	return opts, nil
}

// SearchWindow returns the search look-ahead.
func (v Views) SearchWindow() time.Duration {
	return time.Duration(v.SearchWindowDays) * 24 * time.Hour
}

// clockOffset parses "HH:MM" into an offset from midnight. "24:00" is
// accepted as the end of the day.
func clockOffset(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/agenda/config.yaml, falling back to
// ~/.config.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "agenda", "config.yaml")
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions, creating the
// directory as needed.
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
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".agenda-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
