// Package snapshots persists character progress snapshots and exposes the
// range queries, grouped aggregates and id-list writes the retention job needs.
package snapshots

import (
	"context"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

// Cursor is a keyset position in (captured_at, id) order. Pages resume
// strictly after it.
type Cursor struct {
	CapturedAt time.Time
	ID         string
}

// CursorAfter returns the position of the last snapshot of a page, or nil for
// an empty page.
func CursorAfter(page []*models.Snapshot) *Cursor {
	if len(page) == 0 {
		return nil
	}
	last := page[len(page)-1]
	return &Cursor{CapturedAt: last.CapturedAt, ID: last.ID}
}

// DueQuery selects non-milestone snapshots of Tier captured strictly before
// Before, oldest first. CharacterIDs narrows the scan when non-empty; Limit <= 0
// means unbounded.
type DueQuery struct {
	Tier         models.Tier
	Before       time.Time
	CharacterIDs []string
	Limit        int
	After        *Cursor
}

// ExpiredQuery selects non-milestone snapshots whose expires_at is before Now,
// in the same order and paging as DueQuery.
type ExpiredQuery struct {
	Now          time.Time
	CharacterIDs []string
	Limit        int
	After        *Cursor
}

type Repository interface {
	ListDue(ctx context.Context, q DueQuery) ([]*models.Snapshot, error)
	ListExpired(ctx context.Context, q ExpiredQuery) ([]*models.Snapshot, error)
	ListInWindow(ctx context.Context, profileID string, tier models.Tier, from, to time.Time) ([]*models.Snapshot, error)
	GetByID(ctx context.Context, id string) (*models.Snapshot, error)
	GetPrevious(ctx context.Context, profileID string, before time.Time) (*models.Snapshot, error)
	UpdateTier(ctx context.Context, id string, tier models.Tier, expiresAt *time.Time) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	InsertIgnoreConflicts(ctx context.Context, snaps []*models.Snapshot) (int64, error)
	MarkMilestone(ctx context.Context, id string, milestoneType models.MilestoneType, data *models.TaggedValue) error
	TierStats(ctx context.Context, profileID string, now time.Time) ([]models.TierStat, error)
	CountMilestones(ctx context.Context, characterIDs []string) (int64, error)
}
