package retention

import (
	"errors"
	"testing"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	p, err := Lookup(models.TierHourly)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, p.MaxAge)
	assert.Equal(t, models.TierDaily, p.PromoteTo)

	_, err = Lookup("yearly")
	assert.True(t, errors.Is(err, common.ErrUnknownTier))
}

func TestPromotableTiers_EscalationOrder(t *testing.T) {
	var got []models.Tier
	for _, p := range PromotableTiers() {
		got = append(got, p.Tier)
	}
	assert.Equal(t, []models.Tier{
		models.TierRealtime, models.TierHourly, models.TierDaily, models.TierWeekly,
	}, got)
}

func TestPromotionChainIsAcyclic(t *testing.T) {
	for _, tier := range models.AllTiers {
		seen := map[models.Tier]bool{}
		cur := tier
		for cur != "" {
			require.False(t, seen[cur], "cycle through %s", cur)
			seen[cur] = true
			p, err := Lookup(cur)
			require.NoError(t, err)
			cur = p.PromoteTo
		}
	}
}

func TestCalculateExpirationDate(t *testing.T) {
	captured := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tier models.Tier
		want *time.Time
	}{
		{models.TierRealtime, ptr(captured.Add(24 * time.Hour))},
		{models.TierHourly, ptr(captured.Add(7 * 24 * time.Hour))},
		{models.TierDaily, ptr(captured.Add(90 * 24 * time.Hour))},
		{models.TierWeekly, ptr(captured.Add(365 * 24 * time.Hour))},
		{models.TierMonthly, nil},
		{models.TierMilestone, nil},
		{"bogus", nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			got := CalculateExpirationDate(captured, tt.tier)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %v got %v", tt.want, got)
		})
	}
}

func TestIsDueForPromotion(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	fresh := &models.Snapshot{RetentionTier: models.TierRealtime, CapturedAt: now.Add(-23 * time.Hour)}
	old := &models.Snapshot{RetentionTier: models.TierRealtime, CapturedAt: now.Add(-25 * time.Hour)}
	monthly := &models.Snapshot{RetentionTier: models.TierMonthly, CapturedAt: now.AddDate(-5, 0, 0)}
	pinned := &models.Snapshot{RetentionTier: models.TierRealtime, IsMilestone: true, CapturedAt: now.AddDate(-1, 0, 0)}

	assert.False(t, IsDueForPromotion(fresh, now))
	assert.True(t, IsDueForPromotion(old, now))
	assert.False(t, IsDueForPromotion(monthly, now))
	assert.False(t, IsDueForPromotion(pinned, now))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	assert.True(t, IsExpired(&models.Snapshot{ExpiresAt: &past}, now))
	assert.False(t, IsExpired(&models.Snapshot{}, now))
	assert.False(t, IsExpired(&models.Snapshot{ExpiresAt: &past, IsMilestone: true}, now))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.TierRealtime, models.TierHourly))
	assert.True(t, CanTransition(models.TierWeekly, models.TierMonthly))
	assert.True(t, CanTransition(models.TierDaily, models.TierMilestone))

	assert.False(t, CanTransition(models.TierRealtime, models.TierDaily))
	assert.False(t, CanTransition(models.TierHourly, models.TierRealtime))
	assert.False(t, CanTransition(models.TierMonthly, models.TierWeekly))
	assert.False(t, CanTransition(models.TierMilestone, models.TierMilestone))
	assert.False(t, CanTransition(models.TierMilestone, models.TierMonthly))
}

func ptr[T any](v T) *T { return &v }
