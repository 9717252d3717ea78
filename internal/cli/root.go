// Package cli implements the retention operator command line.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server"
	"github.com/berniemackie97/skillbound-sub002/internal/server/config"
	"github.com/spf13/cobra"
)

// seams for tests
var (
	loadConfig      = config.Load
	buildComponents = server.Build
)

// NewRootCmd returns the "retention" command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "retention",
		Short:         "Operate the snapshot retention and archival engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to a JSON config file (SKILLBOUND_* env vars override it)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("server", "", "gRPC address of a running service; commands run locally when empty")
	root.PersistentFlags().String("token", "", "operator token for --server (default $SKILLBOUND_OPERATOR_TOKEN)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newMilestoneCmd())
	root.AddCommand(newTiersCmd())
	return root
}

// Execute runs the command line against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// withComponents loads config, builds the services, runs fn and closes
// everything afterwards.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *server.Components) error) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	log := logging.New(cmd.ErrOrStderr(), "text", cfg.LogLevel)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	comps, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	return fn(ctx, comps)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
