package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"featlock/internal/app"
	"featlock/internal/core/domain"
	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

func (c *CLI) newOutdatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outdated",
		Short: "Report current, wanted, and latest versions for configured features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetString("output")
			failOnOutdated, _ := cmd.Flags().GetBool("fail-on-outdated")
			if err := validateFormat(output); err != nil {
				return err
			}

			res, err := c.app.Outdated(cmd.Context(), app.OutdatedOptions{
				Options: workspaceOptions(cmd),
			})
			if err != nil {
				return err
			}
			if err := renderOutdated(cmd.OutOrStdout(), output, res.Report); err != nil {
				return err
			}
			if failOnOutdated && res.Report.AnyOutdated() {
				return ErrOutdated
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	cmd.Flags().Bool("fail-on-outdated", false, "Fail when a feature lags its wanted or latest version")
	addWorkspaceFlags(cmd)
	return cmd
}

func renderOutdated(w io.Writer, format string, report domain.OutdatedReport) error {
	if format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return zerr.Wrap(err, "marshal outdated report")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FEATURE\tCURRENT\tWANTED\tLATEST")
	for _, row := range report.Rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			row.ID, orDash(row.Versions.Current), orDash(row.Versions.Wanted), orDash(row.Versions.Latest))
	}
	return tw.Flush()
}

// orDash stands in for a version that could not be determined.
func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
