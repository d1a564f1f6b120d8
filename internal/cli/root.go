// Package cli implements the dupcheck command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// Build information, set at link time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

type rootOptions struct {
	configFile string
}

// NewRootCmd builds the dupcheck command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dupcheck",
		Short: "Find duplicate invoices before they are paid",
		Long: `dupcheck compares a batch of candidate invoices against a reference set
of already-paid invoices and flags likely duplicates using a tiered
key-matching cascade. Unique invoices can be merged into the reference
store once reviewed.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json)")

	cmd.AddCommand(
		newCheckCmd(opts),
		newServeCmd(opts),
		newExportReferenceCmd(opts),
		newStateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// withApp loads configuration for one command run and releases it afterwards.
func withApp(opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(opts.configFile)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
