package cli

import (
	"context"
	"errors"

	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"github.com/spf13/cobra"
)

var errRunFailed = errors.New("retention run finished with errors")

func newRunCmd() *cobra.Command {
	var opts retention.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Promote, archive and expire snapshots once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOperator(cmd, func(ctx context.Context, op operator) error {
				sum, err := op.Run(ctx, opts)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), sum); err != nil {
					return err
				}
				if !sum.Success() {
					return errRunFailed
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "maximum snapshots fetched per page (default from config)")
	cmd.Flags().StringSliceVar(&opts.CharacterIDs, "character", nil, "limit the run to these character ids")
	return cmd
}
