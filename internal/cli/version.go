package cli

import (
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("dupcheck %s\n", Version)
			cmd.Printf("  commit: %s\n", Commit)
			cmd.Printf("  built:  %s\n", BuildDate)
		},
	}
}
