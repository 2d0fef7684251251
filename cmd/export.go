package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/ics"
	"github.com/teemow/agenda/internal/render"
)

func newExportCmd(load appLoader) *cobra.Command {
	var (
		flags  queryFlags
		output string
	)
	const groups = withRange | withCalendars | withEventFilters | withQuery

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events as an iCalendar file",
		Long: `Export the events between --from and --to (default: today) as an
iCalendar document, written to stdout or --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, nil)
			if err != nil {
				return err
			}
			ctx, stop := commandContext(cmd)
			defer stop()

			out, err := a.dispatcher.Run(ctx, dispatch.OpGetEvents, flags.bag(groups))
			if err != nil {
				return err
			}
			if output == "" {
				return exportEvents(cmd.OutOrStdout(), out)
			}

			f, err := os.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			if err := exportEvents(f, out); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), successLine(fmt.Sprintf("Exported %d events to %s", len(out.Result.Events), output)))
			return nil
		},
	}
	flags.register(cmd.Flags(), groups)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func exportEvents(w io.Writer, out dispatch.Outcome) error {
	return ics.Export(w, out.Result.Events, out.Zone, time.Now())
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the structured output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := render.SchemaJSON()
			if err != nil {
				return err
			}
			return writeOutput(cmd, schema)
		},
	}
}
