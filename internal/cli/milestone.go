package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/spf13/cobra"
)

func newMilestoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestone",
		Short: "Pin snapshots permanently or detect their milestones",
	}
	cmd.AddCommand(newMilestoneMarkCmd(), newMilestoneDetectCmd())
	return cmd
}

func newMilestoneMarkCmd() *cobra.Command {
	var (
		typ  string
		data string
	)

	cmd := &cobra.Command{
		Use:   "mark <snapshot-id>",
		Short: "Pin a snapshot as a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tagged *models.TaggedValue
			if data != "" {
				tagged = &models.TaggedValue{}
				if err := json.Unmarshal([]byte(data), tagged); err != nil {
					return fmt.Errorf("--data: %w", err)
				}
			}

			return withOperator(cmd, func(ctx context.Context, op operator) error {
				if err := op.Mark(ctx, args[0], models.MilestoneType(typ), tagged); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s pinned as %s\n", args[0], typ)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "milestone type, e.g. level_99 or manual")
	cmd.Flags().StringVar(&data, "data", "", `tagged progress value, e.g. {"domain":"skill","value":{"skill":"attack","level":99}}`)
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newMilestoneDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <snapshot-id>",
		Short: "Show the milestones a snapshot reaches compared to the previous one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(cmd, func(ctx context.Context, op operator) error {
				found, err := op.DetectForSnapshot(ctx, args[0])
				if err != nil {
					return err
				}
				if found == nil {
					found = []models.Milestone{}
				}
				return printJSON(cmd.OutOrStdout(), found)
			})
		},
	}
}
