package retention

import (
	"fmt"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

// BucketKey maps capturedAt to the canonical key of the tier's time unit.
// All math is done in UTC.
//
//	realtime  2026-01-02T08:15
//	hourly    2026-01-02T08
//	daily     2026-01-02
//	weekly    2026-W01 (ISO-8601 week-numbering year and week)
//	monthly   2026-01
func BucketKey(capturedAt time.Time, tier models.Tier) (string, error) {
	t := capturedAt.UTC()

	switch tier {
	case models.TierRealtime:
		return t.Format("2006-01-02T15:04"), nil
	case models.TierHourly:
		return t.Format("2006-01-02T15"), nil
	case models.TierDaily:
		return t.Format("2006-01-02"), nil
	case models.TierWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case models.TierMonthly:
		return t.Format("2006-01"), nil
	case models.TierMilestone:
		return "", fmt.Errorf("%w: %s", common.ErrTierNotBucketable, tier)
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownTier, tier)
	}
}

// BucketBounds returns the half-open UTC window [start, end) of the bucket
// containing capturedAt. Weekly windows start on the ISO Monday.
func BucketBounds(capturedAt time.Time, tier models.Tier) (time.Time, time.Time, error) {
	t := capturedAt.UTC()

	switch tier {
	case models.TierRealtime:
		start := t.Truncate(time.Minute)
		return start, start.Add(time.Minute), nil
	case models.TierHourly:
		start := t.Truncate(time.Hour)
		return start, start.Add(time.Hour), nil
	case models.TierDaily:
		start := startOfDay(t)
		return start, start.AddDate(0, 0, 1), nil
	case models.TierWeekly:
		start := WeekStart(t)
		return start, start.AddDate(0, 0, 7), nil
	case models.TierMonthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	case models.TierMilestone:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", common.ErrTierNotBucketable, tier)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", common.ErrUnknownTier, tier)
	}
}

// WeekStart returns the Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	d := startOfDay(t.UTC())
	// Monday=0 ... Sunday=6
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
