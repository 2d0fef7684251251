package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teemow/agenda/internal/config"
	"github.com/teemow/agenda/internal/google"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the agenda configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force           bool
		account         string
		credentialsFile string
		feeds           []string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new configuration file",
		Long: `Write a configuration file with the given sources.

ICS feeds are given as NAME=URL, where URL is an http(s) or webcal URL or a
local file path:

  agenda config init --ics Holidays=https://example.com/holidays.ics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			cfg.Timezone, _ = cmd.Flags().GetString(flagTimezone)
			if credentialsFile != "" {
				cfg.Sources.Google = append(cfg.Sources.Google, config.GoogleAccount{
					Account:         account,
					CredentialsFile: credentialsFile,
				})
			}
			for _, spec := range feeds {
				feed, err := parseFeedFlag(spec)
				if err != nil {
					return err
				}
				cfg.Sources.ICS = append(cfg.Sources.ICS, feed)
			}
			cfg.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			out := cmd.ErrOrStderr()
			fmt.Fprintln(out, successLine("Wrote "+path))
			if credentialsFile != "" {
				fmt.Fprintln(out, mutedStyle.Render("Next: agenda auth --account "+account))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&account, "account", google.DefaultAccount, "Google account name")
	cmd.Flags().StringVar(&credentialsFile, "google-credentials", "", "OAuth client credentials JSON of a Google account")
	cmd.Flags().StringArrayVar(&feeds, "ics", nil, "ICS feed as NAME=URL (repeatable)")
	return cmd
}

func parseFeedFlag(spec string) (config.ICSFeed, error) {
	name, url, ok := strings.Cut(spec, "=")
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if !ok || name == "" || url == "" {
		return config.ICSFeed{}, fmt.Errorf("invalid --ics value %q, expected NAME=URL", spec)
	}
	return config.ICSFeed{Name: name, URL: url}, nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after applying environment variables and flags.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			return writeOutput(cmd, string(data))
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			return writeOutput(cmd, path)
		},
	}
}
