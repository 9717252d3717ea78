package snapshots

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

// MemoryRepository is a process-local Repository used for memory:// DSNs and
// tests. Values are copied on the way in and out so callers cannot alias
// stored rows.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*models.Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.Snapshot)}
}

func clone(s *models.Snapshot) *models.Snapshot {
	c := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func inSet(set map[string]bool, id string) bool {
	return len(set) == 0 || set[id]
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// filter returns matching rows ordered by capture time then id, at most limit
// when limit > 0.
func (m *MemoryRepository) filter(limit int, keep func(*models.Snapshot) bool) []*models.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Snapshot
	for _, s := range m.rows {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].CapturedAt.Before(out[j].CapturedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MemoryRepository) ListDue(_ context.Context, q DueQuery) ([]*models.Snapshot, error) {
	chars := toSet(q.CharacterIDs)
	return m.filter(q.Limit, func(s *models.Snapshot) bool {
		return s.RetentionTier == q.Tier && !s.IsMilestone &&
			s.CapturedAt.Before(q.Before) && inSet(chars, s.ProfileID) && past(s, q.After)
	}), nil
}

func (m *MemoryRepository) ListExpired(_ context.Context, q ExpiredQuery) ([]*models.Snapshot, error) {
	chars := toSet(q.CharacterIDs)
	return m.filter(q.Limit, func(s *models.Snapshot) bool {
		return !s.IsMilestone && s.ExpiresAt != nil && s.ExpiresAt.Before(q.Now) &&
			inSet(chars, s.ProfileID) && past(s, q.After)
	}), nil
}

// past reports whether s sorts strictly after c.
func past(s *models.Snapshot, c *Cursor) bool {
	if c == nil {
		return true
	}
	if !s.CapturedAt.Equal(c.CapturedAt) {
		return s.CapturedAt.After(c.CapturedAt)
	}
	return s.ID > c.ID
}

func (m *MemoryRepository) ListInWindow(_ context.Context, profileID string, tier models.Tier, from, to time.Time) ([]*models.Snapshot, error) {
	return m.filter(0, func(s *models.Snapshot) bool {
		return s.ProfileID == profileID && s.RetentionTier == tier &&
			!s.CapturedAt.Before(from) && s.CapturedAt.Before(to)
	}), nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(s), nil
}

func (m *MemoryRepository) GetPrevious(_ context.Context, profileID string, before time.Time) (*models.Snapshot, error) {
	rows := m.filter(0, func(s *models.Snapshot) bool {
		return s.ProfileID == profileID && s.CapturedAt.Before(before)
	})
	if len(rows) == 0 {
		return nil, common.ErrorNotFound
	}
	return rows[len(rows)-1], nil
}

func (m *MemoryRepository) UpdateTier(_ context.Context, id string, tier models.Tier, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[id]
	if !ok || s.IsMilestone {
		return common.ErrorNotFound
	}
	s.RetentionTier = tier
	s.ExpiresAt = nil
	if expiresAt != nil {
		t := expiresAt.UTC()
		s.ExpiresAt = &t
	}
	return nil
}

func (m *MemoryRepository) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range ids {
		if s, ok := m.rows[id]; ok && !s.IsMilestone {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) InsertIgnoreConflicts(_ context.Context, snaps []*models.Snapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range snaps {
		if _, ok := m.rows[s.ID]; ok {
			continue
		}
		c := clone(s)
		c.CapturedAt = c.CapturedAt.UTC()
		m.rows[s.ID] = c
		n++
	}
	return n, nil
}

func (m *MemoryRepository) MarkMilestone(_ context.Context, id string, milestoneType models.MilestoneType, data *models.TaggedValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.RetentionTier = models.TierMilestone
	s.IsMilestone = true
	s.ExpiresAt = nil
	s.MilestoneType = string(milestoneType)
	s.MilestoneData = data
	return nil
}

func (m *MemoryRepository) TierStats(_ context.Context, profileID string, now time.Time) ([]models.TierStat, error) {
	byTier := map[models.Tier]*models.TierStat{}
	for _, s := range m.filter(0, func(s *models.Snapshot) bool { return s.ProfileID == profileID }) {
		st, ok := byTier[s.RetentionTier]
		if !ok {
			st = &models.TierStat{Tier: s.RetentionTier, Oldest: s.CapturedAt}
			byTier[s.RetentionTier] = st
		}
		st.Count++
		// rows arrive in capture order
		st.Newest = s.CapturedAt
		if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			st.Expiring++
		}
	}

	out := make([]models.TierStat, 0, len(byTier))
	for _, st := range byTier {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}

func (m *MemoryRepository) CountMilestones(_ context.Context, characterIDs []string) (int64, error) {
	chars := toSet(characterIDs)
	return int64(len(m.filter(0, func(s *models.Snapshot) bool {
		return s.IsMilestone && inSet(chars, s.ProfileID)
	}))), nil
}
