package cli

import (
	"context"
	"os"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/server"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	grpcapi "github.com/berniemackie97/skillbound-sub002/internal/server/grpc"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"github.com/spf13/cobra"
)

// operator is what the commands drive: the local components, or a running
// service over gRPC when --server is set.
type operator interface {
	Run(ctx context.Context, opts retention.Options) (*retention.Summary, error)
	Mark(ctx context.Context, snapshotID string, t models.MilestoneType, data *models.TaggedValue) error
	DetectForSnapshot(ctx context.Context, snapshotID string) ([]models.Milestone, error)
	Restore(ctx context.Context, archiveID string, dryRun bool) (archive.RestoreResult, error)
	URL(ctx context.Context, archiveID string) (string, error)
	ListArchives(ctx context.Context, characterID string, limit int) ([]*models.ArchiveRecord, error)
	TierStats(ctx context.Context, characterID string) ([]models.TierStat, error)
}

type remoteOperator interface {
	operator
	Close() error
}

// seam for tests
var dialOperator = func(address, token string) (remoteOperator, error) {
	return grpcapi.Dial(address, token)
}

// localOperator runs everything in-process against the configured storage.
type localOperator struct {
	c *server.Components
}

func (o localOperator) Run(ctx context.Context, opts retention.Options) (*retention.Summary, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = o.c.Config.BatchSize
	}
	return o.c.Job.Run(ctx, opts), nil
}

func (o localOperator) Mark(ctx context.Context, snapshotID string, t models.MilestoneType, data *models.TaggedValue) error {
	return o.c.Milestones.Mark(ctx, snapshotID, t, data)
}

func (o localOperator) DetectForSnapshot(ctx context.Context, snapshotID string) ([]models.Milestone, error) {
	return o.c.Milestones.DetectForSnapshot(ctx, snapshotID)
}

func (o localOperator) Restore(ctx context.Context, archiveID string, dryRun bool) (archive.RestoreResult, error) {
	return o.c.Restorer.Restore(ctx, archiveID, dryRun)
}

func (o localOperator) URL(ctx context.Context, archiveID string) (string, error) {
	return o.c.Links.URL(ctx, archiveID)
}

func (o localOperator) ListArchives(ctx context.Context, characterID string, limit int) ([]*models.ArchiveRecord, error) {
	return o.c.Repos.Archives(o.c.Tx.Conn()).ListByProfile(ctx, characterID, limit)
}

func (o localOperator) TierStats(ctx context.Context, characterID string) ([]models.TierStat, error) {
	return o.c.Repos.Snapshots(o.c.Tx.Conn()).TierStats(ctx, characterID, time.Now().UTC())
}

// withOperator runs fn against the service named by --server, or against
// locally built components when the flag is empty.
func withOperator(cmd *cobra.Command, fn func(ctx context.Context, op operator) error) error {
	addr, _ := cmd.Flags().GetString("server")
	if addr == "" {
		return withComponents(cmd, func(ctx context.Context, c *server.Components) error {
			return fn(ctx, localOperator{c: c})
		})
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("SKILLBOUND_OPERATOR_TOKEN")
	}

	op, err := dialOperator(addr, token)
	if err != nil {
		return err
	}
	defer op.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, op)
}
