// Package archives stores the metadata rows of archived snapshot batches.
// Each row is unique per dedup key and never updated after insert.
package archives

import (
	"context"

	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

type Repository interface {
	// FindByDedupKey returns common.ErrorNotFound when no batch was archived
	// under key.
	FindByDedupKey(ctx context.Context, key models.DedupKey) (*models.ArchiveRecord, error)
	// InsertIfAbsent reports false when a record with the same dedup key
	// already exists.
	InsertIfAbsent(ctx context.Context, rec *models.ArchiveRecord) (bool, error)
	GetByID(ctx context.Context, id string) (*models.ArchiveRecord, error)
	ListByProfile(ctx context.Context, profileID string, limit int) ([]*models.ArchiveRecord, error)
}
