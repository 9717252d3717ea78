package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
)

var t0 = time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store    *objectstore.MemoryStore
	repos    *repomanager.InMemoryRepositoryManager
	writer   *Writer
	restorer *Restorer
	ids      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: objectstore.NewMemory("archives"),
		repos: repomanager.NewInMemoryRepositoryManager(),
	}
	f.writer = NewWriter(f.store, dbx.NopTransactor{}, f.repos, WriterConfig{Prefix: "snapshots", Timeout: time.Second}, logging.Discard())
	f.writer.now = func() time.Time { return t0.Add(30 * 24 * time.Hour) }
	f.writer.newID = func() string {
		f.ids++
		return fmt.Sprintf("arc-%d", f.ids)
	}
	f.restorer = NewRestorer(f.store, dbx.NopTransactor{}, f.repos, time.Second, logging.Discard())
	return f
}

func batch(profile string, n int) []*models.Snapshot {
	out := make([]*models.Snapshot, n)
	for i := range out {
		exp := t0.Add(time.Duration(i)*time.Hour + 7*24*time.Hour)
		out[i] = &models.Snapshot{
			ID:            fmt.Sprintf("%s-s%d", profile, i),
			ProfileID:     profile,
			CapturedAt:    t0.Add(time.Duration(i) * time.Hour),
			TotalLevel:    1000 + i,
			Skills:        []models.SkillSnapshot{{Name: "attack", Level: 60 + i, Experience: 273742}},
			Quests:        map[string]models.QuestState{"Dragon Slayer I": models.QuestInProgress},
			DataSource:    models.DataSourceRuneLite,
			RetentionTier: models.TierHourly,
			ExpiresAt:     &exp,
		}
	}
	return out
}

func promotionRequest(profile string, snaps []*models.Snapshot) Request {
	daily := models.TierDaily
	return Request{
		CharacterID: profile,
		SourceTier:  models.TierHourly,
		TargetTier:  &daily,
		Reason:      models.ReasonPromotion,
		BucketKey:   "2026-01-02",
		Snapshots:   snaps,
	}
}

func (f *fixture) archive(t *testing.T, req Request) Result {
	t.Helper()
	return f.writer.Archive(context.Background(), req)
}
