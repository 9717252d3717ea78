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

func TestBucketKey(t *testing.T) {
	ts := time.Date(2026, 1, 2, 8, 15, 42, 0, time.UTC)

	tests := []struct {
		tier models.Tier
		want string
	}{
		{models.TierRealtime, "2026-01-02T08:15"},
		{models.TierHourly, "2026-01-02T08"},
		{models.TierDaily, "2026-01-02"},
		{models.TierWeekly, "2026-W01"},
		{models.TierMonthly, "2026-01"},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			got, err := BucketKey(ts, tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBucketKey_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 2026-01-01 22:30 local is 2026-01-02 03:30 UTC.
	ts := time.Date(2026, 1, 1, 22, 30, 0, 0, loc)

	got, err := BucketKey(ts, models.TierDaily)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02", got)
}

func TestBucketKey_ISOWeekAcrossYearBoundary(t *testing.T) {
	jan1, err := BucketKey(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), models.TierWeekly)
	require.NoError(t, err)
	jan3, err := BucketKey(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), models.TierWeekly)
	require.NoError(t, err)
	dec29, err := BucketKey(time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC), models.TierWeekly)
	require.NoError(t, err)

	assert.Equal(t, "2026-W01", jan1)
	assert.Equal(t, jan1, jan3)
	assert.Equal(t, jan1, dec29)

	start, end, err := BucketBounds(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), models.TierWeekly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), end)
}

func TestBucketKey_Errors(t *testing.T) {
	_, err := BucketKey(time.Now(), models.TierMilestone)
	assert.True(t, errors.Is(err, common.ErrTierNotBucketable))

	_, err = BucketKey(time.Now(), "quarterly")
	assert.True(t, errors.Is(err, common.ErrUnknownTier))

	_, _, err = BucketBounds(time.Now(), models.TierMilestone)
	assert.True(t, errors.Is(err, common.ErrTierNotBucketable))
}

func TestBucketBounds_ContainTimestampAndMatchKey(t *testing.T) {
	samples := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 23, 59, 59, 999, time.UTC),
		time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2027, 1, 3, 18, 45, 0, 0, time.UTC),
	}
	tiers := []models.Tier{models.TierRealtime, models.TierHourly, models.TierDaily, models.TierWeekly, models.TierMonthly}

	for _, ts := range samples {
		for _, tier := range tiers {
			start, end, err := BucketBounds(ts, tier)
			require.NoError(t, err)
			assert.False(t, ts.Before(start), "%s %v before %v", tier, ts, start)
			assert.True(t, ts.Before(end), "%s %v not before %v", tier, ts, end)

			key, _ := BucketKey(ts, tier)
			startKey, _ := BucketKey(start, tier)
			lastKey, _ := BucketKey(end.Add(-time.Nanosecond), tier)
			nextKey, _ := BucketKey(end, tier)
			assert.Equal(t, key, startKey)
			assert.Equal(t, key, lastKey)
			assert.NotEqual(t, key, nextKey)
		}
	}
}

func TestWeekStart(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), WeekStart(sunday))

	monday := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, WeekStart(monday))
}
