package commands

import (
	"fmt"

	"featlock/internal/app"
	"featlock/internal/core/domain"
	"github.com/spf13/cobra"
)

func (c *CLI) newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve configured features and write the lockfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			frozen, _ := cmd.Flags().GetBool("frozen")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			res, err := c.app.Lock(cmd.Context(), app.LockOptions{
				Options: workspaceOptions(cmd),
				Frozen:  frozen,
				DryRun:  dryRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case frozen:
				_, _ = fmt.Fprintf(out, "%s verified\n", res.Path)
			case dryRun:
				// The exact bytes a real run would write.
				_, _ = fmt.Fprint(out, string(res.Bytes))
			default:
				verb := "wrote"
				if res.Status == domain.LockMatched {
					verb = "refreshed"
				}
				_, _ = fmt.Fprintf(out, "%s %s\n", verb, res.Path)
				for _, id := range res.Failed {
					_, _ = fmt.Fprintf(out, "kept previous entry for unresolved feature %s\n", id)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("frozen", false, "Verify the existing lockfile instead of writing; any deviation fails")
	cmd.Flags().Bool("dry-run", false, "Print the lockfile without writing it")
	addWorkspaceFlags(cmd)
	return cmd
}
