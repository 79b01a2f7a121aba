// Package cli implements the console command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps the error returned by Execute onto a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

func exit(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// RootOptions wires the commands to the application.
type RootOptions struct {
	// Manifest is the route manifest document.
	Manifest []byte
	// Serve runs the HTTP server until ctx is cancelled.
	Serve  func(ctx context.Context) int
	Stdout io.Writer
	Stderr io.Writer
}

// NewRootCommand builds the console command tree. Without a subcommand it serves.
func NewRootCommand(opts RootOptions) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Serve == nil {
				return errors.New("serve: not configured")
			}
			return exit(opts.Serve(cmd.Context()))
		},
	}

	root := &cobra.Command{
		Use:           "console",
		Short:         "Tree monitoring console",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.AddCommand(serve, newRoutesCommand(opts), newCheckCommand(opts))
	return root
}

func newRoutesCommand(opts RootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the route manifest and what each route requires",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return exit(RoutesCommand(opts.Manifest, RoutesOptions{
				JSONOutput: jsonOut,
				Stdout:     opts.Stdout,
				Stderr:     opts.Stderr,
			}))
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func newCheckCommand(opts RootOptions) *cobra.Command {
	var check CheckOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a capability or a route for a persisted identity",
		Long: `Evaluate a capability or a route for an identity document in the
persisted session layout. Exits 0 when granted, 2 when denied.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			check.Manifest = opts.Manifest
			check.Stdout = opts.Stdout
			check.Stderr = opts.Stderr
			return exit(CheckCommand(check))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&check.IdentityPath, "identity", "", "identity JSON file")
	flags.StringVar(&check.Capability, "capability", "", "capability to evaluate, e.g. DELETE_TREE")
	flags.Int64Var(&check.CenterID, "center", 0, "center id the capability is scoped to")
	flags.StringVar(&check.Path, "path", "", "route path to evaluate against the manifest")
	flags.BoolVar(&check.JSONOutput, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}
