package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and restore snapshot archives",
	}
	cmd.AddCommand(newArchiveRestoreCmd(), newArchiveURLCmd(), newArchiveListCmd())
	return cmd
}

func newArchiveRestoreCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "restore <archive-id>",
		Short: "Re-insert the snapshots of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(cmd, func(ctx context.Context, op operator) error {
				res, err := op.Restore(ctx, args[0], dryRun)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the archive without inserting")
	return cmd
}

func newArchiveURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <archive-id>",
		Short: "Print a download URL for an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(cmd, func(ctx context.Context, op operator) error {
				url, err := op.URL(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write([]byte(url + "\n"))
				return err
			})
		},
	}
}

func newArchiveListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <character-id>",
		Short: "List the archives of a character, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(cmd, func(ctx context.Context, op operator) error {
				recs, err := op.ListArchives(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to print (0 for all)")
	return cmd
}
