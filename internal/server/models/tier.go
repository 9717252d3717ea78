// Package models defines the retention service's persisted data: progress
// snapshots, archive records, retention tiers and the tagged progress values
// carried in milestone data.
package models

// Tier is a snapshot retention tier.
type Tier string

const (
	TierRealtime  Tier = "realtime"
	TierHourly    Tier = "hourly"
	TierDaily     Tier = "daily"
	TierWeekly    Tier = "weekly"
	TierMonthly   Tier = "monthly"
	TierMilestone Tier = "milestone"
)

// AllTiers lists tiers in escalation order, milestone last.
var AllTiers = []Tier{TierRealtime, TierHourly, TierDaily, TierWeekly, TierMonthly, TierMilestone}

func (t Tier) Valid() bool {
	for _, known := range AllTiers {
		if t == known {
			return true
		}
	}
	return false
}

func (t Tier) String() string {
	return string(t)
}

// DataSource tags the provenance of a snapshot.
type DataSource string

const (
	// DataSourceRuneLite is a client-side plugin sync; it carries the most fields.
	DataSourceRuneLite DataSource = "runelite"
	// DataSourceHiscores is a scrape of the public hiscores.
	DataSourceHiscores DataSource = "hiscores"
)

// Fidelity ranks a data source; higher is better. Unknown sources rank 0.
func (d DataSource) Fidelity() int {
	switch d {
	case DataSourceRuneLite:
		return 2
	case DataSourceHiscores:
		return 1
	default:
		return 0
	}
}

// ArchiveReason explains why a batch of snapshots was archived.
type ArchiveReason string

const (
	ReasonPromotion  ArchiveReason = "promotion"
	ReasonExpiration ArchiveReason = "expiration"
	ReasonManual     ArchiveReason = "manual"
)

func (r ArchiveReason) Valid() bool {
	switch r {
	case ReasonPromotion, ReasonExpiration, ReasonManual:
		return true
	}
	return false
}
