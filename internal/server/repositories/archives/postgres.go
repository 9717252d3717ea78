package archives

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

const columns = `id, profile_id, source_tier, target_tier, reason, bucket_key,
	captured_from, captured_to, snapshot_count, snapshot_ids, size_bytes, checksum,
	compressed, archive_version, storage_provider, storage_bucket, storage_key,
	storage_region, storage_endpoint, created_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ArchiveRecord, error) {
	var (
		rec        models.ArchiveRecord
		targetTier sql.NullString
		ids        []byte
	)
	err := row.Scan(&rec.ID, &rec.ProfileID, &rec.SourceTier, &targetTier, &rec.Reason, &rec.BucketKey,
		&rec.CapturedFrom, &rec.CapturedTo, &rec.SnapshotCount, &ids, &rec.SizeBytes, &rec.Checksum,
		&rec.Compressed, &rec.ArchiveVersion, &rec.Storage.Provider, &rec.Storage.Bucket, &rec.Storage.Key,
		&rec.Storage.Region, &rec.Storage.Endpoint, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if targetTier.Valid {
		t := models.Tier(targetTier.String)
		rec.TargetTier = &t
	}
	if ids != nil {
		if err := json.Unmarshal(ids, &rec.SnapshotIDs); err != nil {
			return nil, fmt.Errorf("decode snapshot ids of archive %s: %w", rec.ID, err)
		}
	}
	rec.CapturedFrom = rec.CapturedFrom.UTC()
	rec.CapturedTo = rec.CapturedTo.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.ArchiveRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select archive: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) FindByDedupKey(ctx context.Context, key models.DedupKey) (*models.ArchiveRecord, error) {
	query := `SELECT ` + columns + ` FROM snapshot_archives
		WHERE profile_id = $1 AND source_tier = $2 AND reason = $3 AND bucket_key = $4`
	return r.getOne(ctx, query, key.ProfileID, string(key.SourceTier), string(key.Reason), key.BucketKey)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ArchiveRecord, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM snapshot_archives WHERE id = $1`, id)
}

// InsertIfAbsent relies on the unique dedup index; a concurrent writer that
// got there first turns this insert into a no-op.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, rec *models.ArchiveRecord) (bool, error) {
	ids, err := json.Marshal(rec.SnapshotIDs)
	if err != nil {
		return false, fmt.Errorf("encode snapshot ids: %w", err)
	}
	var targetTier any
	if rec.TargetTier != nil {
		targetTier = string(*rec.TargetTier)
	}

	query := `INSERT INTO snapshot_archives (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (profile_id, source_tier, reason, bucket_key) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ProfileID, string(rec.SourceTier), targetTier, string(rec.Reason), rec.BucketKey,
		rec.CapturedFrom.UTC(), rec.CapturedTo.UTC(), rec.SnapshotCount, string(ids), rec.SizeBytes, rec.Checksum,
		rec.Compressed, rec.ArchiveVersion, rec.Storage.Provider, rec.Storage.Bucket, rec.Storage.Key,
		rec.Storage.Region, rec.Storage.Endpoint, rec.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// ListByProfile returns the newest archives first.
func (r *PostgresRepository) ListByProfile(ctx context.Context, profileID string, limit int) ([]*models.ArchiveRecord, error) {
	query := `SELECT ` + columns + ` FROM snapshot_archives
		WHERE profile_id = $1 ORDER BY created_at DESC, id`
	args := []any{profileID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select archives: %w", err)
	}
	defer rows.Close()

	var result []*models.ArchiveRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
