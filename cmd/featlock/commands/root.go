// Package commands implements the CLI commands for the featlock tool.
package commands

import (
	"context"
	"io"

	"featlock/internal/app"
	"featlock/internal/build"
	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

// ErrOutdated signals the fail-on-outdated gate. The entry point maps it to
// its own exit code so CI can distinguish "behind" from "broken".
var ErrOutdated = zerr.New("configured features are outdated")

var errUnknownFormat = zerr.New("unknown output format")

// CLI represents the command line interface for featlock.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Outdated(ctx context.Context, opts app.OutdatedOptions) (app.OutdatedResult, error)
	Lock(ctx context.Context, opts app.LockOptions) (app.LockResult, error)
	Plan(ctx context.Context, opts app.PlanOptions) (app.PlanResult, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "featlock",
		Short:         "Resolve and lock devcontainer feature versions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newOutdatedCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// addWorkspaceFlags attaches the flags every resolving command shares.
func addWorkspaceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("workspace", "w", "", "Workspace directory searched for the devcontainer configuration")
	cmd.Flags().String("config", "", "Explicit configuration file, overriding discovery")
}

func workspaceOptions(cmd *cobra.Command) app.Options {
	workspace, _ := cmd.Flags().GetString("workspace")
	config, _ := cmd.Flags().GetString("config")
	return app.Options{Workspace: workspace, ConfigPath: config}
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return zerr.With(errUnknownFormat, "format", format)
}
