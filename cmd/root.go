package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// rootCmd represents the base command for the agenda application
var rootCmd = newRootCmd(loadApp)

func newRootCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Read-only calendar and reminder queries",
		Long: `agenda answers questions about your calendars and reminders: what is on
today, when you are free, what is due. It reads Google Calendar, Google Tasks
and iCalendar feeds and never writes to them.

It can run as:
  - A command-line tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.SetVersionTemplate(`{{printf "agenda version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.String(flagConfig, "", "Config file (default "+defaultConfigHint()+")")
	flags.String(flagTimezone, "", "IANA time zone for display and relative dates (default: config or system zone)")
	flags.String(flagLogLevel, "", "Log level: debug, info, warn or error")
	flags.String(flagLogFormat, "", "Log format: text or json")
	flags.Bool(flagJSON, false, "Print JSON instead of Markdown")

	cmd.AddCommand(newQueryCmds(load)...)
	cmd.AddCommand(
		newExportCmd(load),
		newSchemaCmd(),
		newServeCmd(load),
		newAuthCmd(),
		newConfigCmd(),
		newGenerateDocsCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of agenda",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agenda version %s\n", version)
		},
	}
}
