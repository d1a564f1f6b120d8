package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dupcheck/internal/service"
	"dupcheck/internal/state"
)

func newStateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the remembered sources of the previous run",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the last-used reference and candidate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(root, func(a *app) error {
				store, err := state.NewFileStore(a.cfg.State.Path)
				if err != nil {
					return err
				}
				last, err := store.Load()
				if err != nil {
					return err
				}
				if last.Candidate == "" {
					cmd.Printf("No previous run recorded (%s)\n", store.Path())
					return nil
				}

				ref := last.Reference
				if ref == "" {
					ref = service.ReferenceStoreSource
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintf(tw, "State file:\t%s\n", store.Path())
				_, _ = fmt.Fprintf(tw, "Last run:\t%s\n", last.UpdatedAt.Local().Format(time.DateTime))
				_, _ = fmt.Fprintf(tw, "Reference:\t%s%s\n", ref, modified(last.Reference))
				_, _ = fmt.Fprintf(tw, "Candidate:\t%s%s\n", last.Candidate, modified(last.Candidate))
				if last.Sheet != "" {
					_, _ = fmt.Fprintf(tw, "Sheet:\t%s\n", last.Sheet)
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}

func modified(location string) string {
	if t, ok := state.ModTime(location); ok {
		return " (modified " + t.Format(time.DateTime) + ")"
	}
	return ""
}
