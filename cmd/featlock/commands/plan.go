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

func (c *CLI) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resolved feature set and its installation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetString("output")
			skipAutoMapping, _ := cmd.Flags().GetBool("skip-auto-mapping")
			if err := validateFormat(output); err != nil {
				return err
			}

			res, err := c.app.Plan(cmd.Context(), app.PlanOptions{
				Options:         workspaceOptions(cmd),
				SkipAutoMapping: skipAutoMapping,
			})
			if err != nil {
				return err
			}
			return renderPlan(cmd.OutOrStdout(), output, res.Merged)
		},
	}
	cmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	cmd.Flags().Bool("skip-auto-mapping", false, "Resolve only explicitly declared features")
	addWorkspaceFlags(cmd)
	return cmd
}

// planFeature is the JSON shape for one resolved entry. Failures surface as
// an error string so a partial plan still serializes.
type planFeature struct {
	ID            string   `json:"id"`
	DeclaredRef   string   `json:"declaredRef"`
	State         string   `json:"state"`
	Version       string   `json:"version,omitempty"`
	Resolved      string   `json:"resolved,omitempty"`
	DependsOn     []string `json:"dependsOn,omitempty"`
	InstallsAfter []string `json:"installsAfter,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type planPayload struct {
	Features     []planFeature `json:"features"`
	InstallOrder []string      `json:"installOrder"`
}

func renderPlan(w io.Writer, format string, merged domain.MergedConfiguration) error {
	if format == "json" {
		payload := planPayload{
			Features:     make([]planFeature, 0, len(merged.Features)),
			InstallOrder: merged.InstallOrder,
		}
		if payload.InstallOrder == nil {
			payload.InstallOrder = []string{}
		}
		for _, f := range merged.Features {
			pf := planFeature{
				ID:            f.ID,
				DeclaredRef:   f.DeclaredRef,
				State:         f.State.String(),
				Version:       f.LockVersion(),
				Resolved:      f.CanonicalRef,
				DependsOn:     f.DependsOn,
				InstallsAfter: f.InstallsAfter,
			}
			if f.Err != nil {
				pf.Error = f.Err.Error()
			}
			payload.Features = append(payload.Features, pf)
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return zerr.Wrap(err, "marshal plan")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, f := range merged.Features {
		switch {
		case f.State == domain.StateFailed:
			_, _ = fmt.Fprintf(tw, "%s\tfailed: %v\n", f.DeclaredRef, f.Err)
		case f.CanonicalRef != "":
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", f.CanonicalRef, orDash(f.LockVersion()))
		default:
			_, _ = fmt.Fprintf(tw, "%s\t\n", f.DeclaredRef)
		}
	}
	_, _ = fmt.Fprintln(tw, "\ninstall order:")
	for i, id := range merged.InstallOrder {
		_, _ = fmt.Fprintf(tw, "  %d. %s\n", i+1, id)
	}
	return tw.Flush()
}
