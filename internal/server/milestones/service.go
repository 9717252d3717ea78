package milestones

import (
	"context"
	"errors"
	"fmt"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
)

type Service struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
	log   logging.Logger
}

func NewService(tx dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) *Service {
	return &Service{tx: tx, repos: repos, log: log}
}

// DetectForSnapshot loads a snapshot and the one captured just before it and
// returns the milestones it reaches. Nothing is written.
func (s *Service) DetectForSnapshot(ctx context.Context, snapshotID string) ([]models.Milestone, error) {
	repo := s.repos.Snapshots(s.tx.Conn())

	current, err := repo.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", snapshotID, err)
	}

	previous, err := repo.GetPrevious(ctx, current.ProfileID, current.CapturedAt)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("load previous snapshot of %s: %w", current.ProfileID, err)
	}

	found := Detect(previous, current)
	if len(found) > 0 {
		s.log.Debug(ctx, "milestones detected", "snapshot", snapshotID, "character", current.ProfileID, "count", len(found))
	}
	return found, nil
}

// Mark pins a snapshot permanently. Marking an already pinned snapshot again
// overwrites its type and data.
func (s *Service) Mark(ctx context.Context, snapshotID string, milestoneType models.MilestoneType, data *models.TaggedValue) error {
	if snapshotID == "" || milestoneType == "" {
		return fmt.Errorf("%w: snapshot id and milestone type are required", common.ErrorInvalidInput)
	}

	if err := s.repos.Snapshots(s.tx.Conn()).MarkMilestone(ctx, snapshotID, milestoneType, data); err != nil {
		return fmt.Errorf("mark %s as %s: %w", snapshotID, milestoneType, err)
	}

	s.log.Info(ctx, "snapshot pinned as milestone", "snapshot", snapshotID, "type", string(milestoneType))
	return nil
}
