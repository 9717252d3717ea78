package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
)

type RestoreResult struct {
	ArchiveID     string `json:"archiveId"`
	SnapshotCount int    `json:"snapshotCount"`
	Inserted      int64  `json:"inserted"`
	Skipped       int64  `json:"skipped"`
	DryRun        bool   `json:"dryRun"`
}

// Restorer re-inserts archived snapshots. Rows that already exist are left
// untouched, so a restore can be repeated safely.
type Restorer struct {
	store   objectstore.Store
	tx      dbx.Transactor
	repos   repomanager.RepositoryManager
	timeout time.Duration
	log     logging.Logger
}

// NewRestorer builds a Restorer. timeout bounds each object-storage read;
// zero leaves reads unbounded.
func NewRestorer(store objectstore.Store, tx dbx.Transactor, repos repomanager.RepositoryManager, timeout time.Duration, log logging.Logger) *Restorer {
	return &Restorer{store: store, tx: tx, repos: repos, timeout: timeout, log: log}
}

// Load fetches, verifies and decodes the blob of one archive without writing
// anything.
func (r *Restorer) Load(ctx context.Context, archiveID string) (*models.ArchiveRecord, *Payload, error) {
	if r.store == nil {
		return nil, nil, common.ErrorArchiveConfig
	}

	rec, err := r.repos.Archives(r.tx.Conn()).GetByID(ctx, archiveID)
	if err != nil {
		return nil, nil, fmt.Errorf("load archive %s: %w", archiveID, err)
	}
	if want := r.store.Location().Provider; rec.Storage.Provider != want {
		return nil, nil, fmt.Errorf("%w: archive %s is in %q, configured store is %q",
			common.ErrProviderMismatch, archiveID, rec.Storage.Provider, want)
	}

	getCtx, cancel := withTimeout(ctx, r.timeout)
	blob, err := r.store.Get(getCtx, rec.Storage.Bucket, rec.Storage.Key)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("fetch archive %s: %w", archiveID, err)
	}
	if sum := Checksum(blob); sum != rec.Checksum {
		return nil, nil, fmt.Errorf("%w: archive %s", common.ErrChecksumMismatch, archiveID)
	}

	p, err := Decode(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("archive %s: %w", archiveID, err)
	}
	if p.CharacterID != rec.ProfileID {
		return nil, nil, fmt.Errorf("%w: archive %s belongs to %s, payload to %s",
			common.ErrMalformedArchive, archiveID, rec.ProfileID, p.CharacterID)
	}
	return rec, p, nil
}

// Restore re-inserts the snapshots of an archive in a single transaction.
// With dryRun nothing is written and the result only reports the count.
func (r *Restorer) Restore(ctx context.Context, archiveID string, dryRun bool) (RestoreResult, error) {
	res := RestoreResult{ArchiveID: archiveID, DryRun: dryRun}

	_, p, err := r.Load(ctx, archiveID)
	if err != nil {
		return res, err
	}
	res.SnapshotCount = len(p.Snapshots)
	if dryRun {
		return res, nil
	}

	err = r.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := r.repos.Snapshots(tx).InsertIgnoreConflicts(ctx, p.Snapshots)
		if err != nil {
			return err
		}
		res.Inserted = n
		return nil
	})
	if err != nil {
		return RestoreResult{ArchiveID: archiveID}, fmt.Errorf("restore archive %s: %w", archiveID, err)
	}
	res.Skipped = int64(res.SnapshotCount) - res.Inserted

	r.log.Info(ctx, "archive restored",
		"archive", archiveID,
		"character", p.CharacterID,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return res, nil
}
