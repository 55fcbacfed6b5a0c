// ABOUTME: Cobra command tree for the fieldsync CLI
// ABOUTME: Global flags select the config file, output format and verbosity

package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "Offline-first field sales data sync",
		Long: `fieldsync logs representatives in against the remote service or,
when offline, against the locally cached users, and keeps a local copy of the
tables needed to work without a connection.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/fieldsync/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newTeamsCommand(opts))
	cmd.AddCommand(newWarmCommand(opts))
	cmd.AddCommand(newCacheCommand(opts))
	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newInfoCommand(opts))
	cmd.AddCommand(newWipeCommand(opts))

	return cmd
}

// withApp wires the components, runs fn and tears everything down.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app, p *printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, &printer{format: opts.Format, out: cmd.OutOrStdout()})
}
