package archives

import (
	"context"
	"sort"
	"sync"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

// MemoryRepository is the process-local Repository used for memory:// DSNs
// and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.ArchiveRecord
	byKey map[models.DedupKey]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.ArchiveRecord),
		byKey: make(map[models.DedupKey]string),
	}
}

func clone(r *models.ArchiveRecord) *models.ArchiveRecord {
	c := *r
	c.SnapshotIDs = append([]string(nil), r.SnapshotIDs...)
	if r.TargetTier != nil {
		t := *r.TargetTier
		c.TargetTier = &t
	}
	return &c
}

func (m *MemoryRepository) FindByDedupKey(_ context.Context, key models.DedupKey) (*models.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryRepository) InsertIfAbsent(_ context.Context, rec *models.ArchiveRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.DedupKey()
	if _, ok := m.byKey[key]; ok {
		return false, nil
	}
	m.byID[rec.ID] = clone(rec)
	m.byKey[key] = rec.ID
	return true, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*models.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(rec), nil
}

func (m *MemoryRepository) ListByProfile(_ context.Context, profileID string, limit int) ([]*models.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ArchiveRecord
	for _, rec := range m.byID {
		if rec.ProfileID == profileID {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
