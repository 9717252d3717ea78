package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newTiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers <character-id>",
		Short: "Show how many snapshots a character keeps per tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(cmd, func(ctx context.Context, op operator) error {
				stats, err := op.TierStats(ctx, args[0])
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIER\tCOUNT\tOLDEST\tNEWEST\tEXPIRING")
				for _, s := range stats {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", s.Tier, s.Count,
						s.Oldest.Format(time.RFC3339), s.Newest.Format(time.RFC3339), s.Expiring)
				}
				return w.Flush()
			})
		},
	}
}
