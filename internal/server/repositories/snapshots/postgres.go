package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

const columns = `id, profile_id, captured_at, total_level, total_experience, combat_level,
	skills, activities, quests, diaries, music_unlocks, combat_achievements, collection_log,
	data_source, retention_tier, is_milestone, milestone_type, milestone_data, expires_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*models.Snapshot, error) {
	var (
		s                                              models.Snapshot
		skills, activities, quests, diaries, music     []byte
		combatAchievements, collectionLog, milestoneJS []byte
		milestoneType                                  sql.NullString
		expiresAt                                      sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ProfileID, &s.CapturedAt, &s.TotalLevel, &s.TotalExperience, &s.CombatLevel,
		&skills, &activities, &quests, &diaries, &music, &combatAchievements, &collectionLog,
		&s.DataSource, &s.RetentionTier, &s.IsMilestone, &milestoneType, &milestoneJS, &expiresAt)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		raw []byte
		dst any
	}{
		{skills, &s.Skills},
		{activities, &s.Activities},
		{quests, &s.Quests},
		{diaries, &s.Diaries},
		{music, &s.MusicUnlocks},
		{combatAchievements, &s.CombatAchievements},
		{collectionLog, &s.CollectionLog},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", s.ID, err)
		}
	}
	if milestoneJS != nil {
		s.MilestoneData = &models.TaggedValue{}
		if err := json.Unmarshal(milestoneJS, s.MilestoneData); err != nil {
			return nil, fmt.Errorf("decode milestone data %s: %w", s.ID, err)
		}
	}

	s.CapturedAt = s.CapturedAt.UTC()
	s.MilestoneType = milestoneType.String
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		s.ExpiresAt = &t
	}
	return &s, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshots: %w", err)
	}
	defer rows.Close()

	var result []*models.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListDue returns non-milestone snapshots of q.Tier captured before q.Before.
func (r *PostgresRepository) ListDue(ctx context.Context, q DueQuery) ([]*models.Snapshot, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + columns + ` FROM character_snapshots
		WHERE retention_tier = $1 AND is_milestone = false AND captured_at < $2`)
	args := []any{string(q.Tier), q.Before.UTC()}

	if len(q.CharacterIDs) > 0 {
		fmt.Fprintf(&b, ` AND profile_id IN (%s)`, dbx.Placeholders(len(args)+1, len(q.CharacterIDs)))
		args = append(args, dbx.StringArgs(q.CharacterIDs)...)
	}
	args = afterCursor(&b, args, q.After)
	b.WriteString(` ORDER BY captured_at, id`)
	if q.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args)+1)
		args = append(args, q.Limit)
	}
	return r.query(ctx, b.String(), args...)
}

// ListExpired returns non-milestone snapshots whose expires_at is before q.Now.
func (r *PostgresRepository) ListExpired(ctx context.Context, q ExpiredQuery) ([]*models.Snapshot, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + columns + ` FROM character_snapshots
		WHERE is_milestone = false AND expires_at IS NOT NULL AND expires_at < $1`)
	args := []any{q.Now.UTC()}

	if len(q.CharacterIDs) > 0 {
		fmt.Fprintf(&b, ` AND profile_id IN (%s)`, dbx.Placeholders(len(args)+1, len(q.CharacterIDs)))
		args = append(args, dbx.StringArgs(q.CharacterIDs)...)
	}
	args = afterCursor(&b, args, q.After)
	b.WriteString(` ORDER BY captured_at, id`)
	if q.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args)+1)
		args = append(args, q.Limit)
	}
	return r.query(ctx, b.String(), args...)
}

func afterCursor(b *strings.Builder, args []any, c *Cursor) []any {
	if c == nil {
		return args
	}
	fmt.Fprintf(b, ` AND (captured_at, id) > ($%d, $%d)`, len(args)+1, len(args)+2)
	return append(args, c.CapturedAt.UTC(), c.ID)
}

// ListInWindow returns the snapshots of one character in tier captured in [from, to).
func (r *PostgresRepository) ListInWindow(ctx context.Context, profileID string, tier models.Tier, from, to time.Time) ([]*models.Snapshot, error) {
	query := `SELECT ` + columns + ` FROM character_snapshots
		WHERE profile_id = $1 AND retention_tier = $2 AND captured_at >= $3 AND captured_at < $4
		ORDER BY captured_at, id`
	return r.query(ctx, query, profileID, string(tier), from.UTC(), to.UTC())
}

// GetByID returns common.ErrorNotFound when no row matches.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Snapshot, error) {
	query := `SELECT ` + columns + ` FROM character_snapshots WHERE id = $1`
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshot: %w", err)
	}
	return s, nil
}

// GetPrevious returns the latest snapshot of profileID captured before the
// given instant, or common.ErrorNotFound.
func (r *PostgresRepository) GetPrevious(ctx context.Context, profileID string, before time.Time) (*models.Snapshot, error) {
	query := `SELECT ` + columns + ` FROM character_snapshots
		WHERE profile_id = $1 AND captured_at < $2
		ORDER BY captured_at DESC, id DESC LIMIT 1`
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, profileID, before.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select previous snapshot: %w", err)
	}
	return s, nil
}

// UpdateTier sets the tier and expiry of a non-milestone snapshot.
// Re-applying the same values is a no-op. A missing row is common.ErrorNotFound.
func (r *PostgresRepository) UpdateTier(ctx context.Context, id string, tier models.Tier, expiresAt *time.Time) error {
	query := `UPDATE character_snapshots SET retention_tier = $2, expires_at = $3
		WHERE id = $1 AND is_milestone = false`
	res, err := r.db.ExecContext(ctx, query, id, string(tier), nullTime(expiresAt))
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteByIDs deletes the listed snapshots. Milestones are never deleted even
// when listed.
func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`DELETE FROM character_snapshots WHERE is_milestone = false AND id IN (%s)`,
		dbx.Placeholders(1, len(ids)))
	res, err := r.db.ExecContext(ctx, query, dbx.StringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// InsertIgnoreConflicts inserts snaps, skipping ids that already exist, and
// returns the number of rows actually inserted.
func (r *PostgresRepository) InsertIgnoreConflicts(ctx context.Context, snaps []*models.Snapshot) (int64, error) {
	query := `INSERT INTO character_snapshots (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING`

	var inserted int64
	for _, s := range snaps {
		args, err := insertArgs(s)
		if err != nil {
			return inserted, err
		}
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert snapshot %s: %w", s.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected error: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// MarkMilestone pins a snapshot: tier milestone, no expiry, type and data stored.
func (r *PostgresRepository) MarkMilestone(ctx context.Context, id string, milestoneType models.MilestoneType, data *models.TaggedValue) error {
	var payload any
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode milestone data: %w", err)
		}
		payload = string(b)
	}

	query := `UPDATE character_snapshots
		SET retention_tier = 'milestone', is_milestone = true, expires_at = NULL,
			milestone_type = $2, milestone_data = $3
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(milestoneType), payload)
	if err != nil {
		return fmt.Errorf("failed to mark milestone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// TierStats aggregates one character's snapshots per tier. Expiring counts
// rows whose expires_at has already passed at now.
func (r *PostgresRepository) TierStats(ctx context.Context, profileID string, now time.Time) ([]models.TierStat, error) {
	query := `SELECT retention_tier, COUNT(*), MIN(captured_at), MAX(captured_at),
			COUNT(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at < $2)
		FROM character_snapshots
		WHERE profile_id = $1
		GROUP BY retention_tier
		ORDER BY retention_tier`
	rows, err := r.db.QueryContext(ctx, query, profileID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tiers: %w", err)
	}
	defer rows.Close()

	var result []models.TierStat
	for rows.Next() {
		var st models.TierStat
		if err := rows.Scan(&st.Tier, &st.Count, &st.Oldest, &st.Newest, &st.Expiring); err != nil {
			return nil, err
		}
		st.Oldest, st.Newest = st.Oldest.UTC(), st.Newest.UTC()
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountMilestones counts pinned snapshots, optionally scoped to characterIDs.
func (r *PostgresRepository) CountMilestones(ctx context.Context, characterIDs []string) (int64, error) {
	query := `SELECT COUNT(*) FROM character_snapshots WHERE is_milestone = true`
	args := []any{}
	if len(characterIDs) > 0 {
		query += fmt.Sprintf(` AND profile_id IN (%s)`, dbx.Placeholders(1, len(characterIDs)))
		args = dbx.StringArgs(characterIDs)
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count milestones: %w", err)
	}
	return n, nil
}

func insertArgs(s *models.Snapshot) ([]any, error) {
	skills, err := jsonArg(s.Skills, s.Skills == nil)
	if err != nil {
		return nil, err
	}
	if skills == nil {
		skills = "[]"
	}
	optional := []struct {
		v     any
		isNil bool
	}{
		{s.Activities, s.Activities == nil},
		{s.Quests, s.Quests == nil},
		{s.Diaries, s.Diaries == nil},
		{s.MusicUnlocks, s.MusicUnlocks == nil},
		{s.CombatAchievements, s.CombatAchievements == nil},
		{s.CollectionLog, s.CollectionLog == nil},
		{s.MilestoneData, s.MilestoneData == nil},
	}
	encoded := make([]any, len(optional))
	for i, o := range optional {
		if encoded[i], err = jsonArg(o.v, o.isNil); err != nil {
			return nil, err
		}
	}

	var milestoneType any
	if s.MilestoneType != "" {
		milestoneType = s.MilestoneType
	}

	return []any{
		s.ID, s.ProfileID, s.CapturedAt.UTC(), s.TotalLevel, s.TotalExperience, s.CombatLevel,
		skills, encoded[0], encoded[1], encoded[2], encoded[3], encoded[4], encoded[5],
		string(s.DataSource), string(s.RetentionTier), s.IsMilestone, milestoneType, encoded[6],
		nullTime(s.ExpiresAt),
	}, nil
}

// jsonArg encodes v for a jsonb parameter; isNil maps to SQL NULL.
func jsonArg(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot field: %w", err)
	}
	return string(b), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
