package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/agenda/internal/config"
	"github.com/teemow/agenda/internal/logging"
)

// Flag names shared between commands and the viper keys they override.
const (
	flagConfig      = "config"
	flagTimezone    = "timezone"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagJSON        = "json"
	flagHTTPAddr    = "http-addr"
	flagMetricsAddr = "metrics-addr"
)

const envPrefix = "AGENDA"

// overrides maps config keys to the flag that sets them. Every key can also
// be set through the environment, e.g. AGENDA_VIEWS_MIN_SLOT=45m.
var overrides = map[string]string{
	"timezone":                 flagTimezone,
	"log.level":                flagLogLevel,
	"log.format":               flagLogFormat,
	"source.timeout":           "",
	"views.workday_start":      "",
	"views.workday_end":        "",
	"views.min_slot":           "",
	"views.search_window_days": "",
	"server.http_addr":         flagHTTPAddr,
	"server.metrics_addr":      flagMetricsAddr,
	"server.refresh_schedule":  "",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return v
}

// configPath returns --config, AGENDA_CONFIG or the default path.
func configPath(cmd *cobra.Command) (string, error) {
	v := newViper()
	if err := v.BindEnv("config"); err != nil {
		return "", err
	}
	if f := cmd.Flags().Lookup(flagConfig); f != nil && f.Changed {
		if err := v.BindPFlag("config", f); err != nil {
			return "", err
		}
	}
	if path := v.GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath(), nil
}

// loadSettings reads the config file and applies environment and flag
// overrides, flags winning over the environment.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	v := newViper()
	for key, flag := range overrides {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
		if flag == "" {
			continue
		}
		// Unchanged flags would override the file with their zero defaults.
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply settings: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	return logging.New(w, cfg.Log.Level, cfg.Log.Format)
}

func defaultConfigHint() string {
	return "$XDG_CONFIG_HOME/agenda/config.yaml"
}
