// Package retention implements the snapshot lifecycle: the tier policy,
// time bucketing, best-representative selection and the job that promotes,
// archives and expires snapshots.
package retention

import (
	"fmt"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

const day = 24 * time.Hour

// TierPolicy describes how long a tier keeps a snapshot and where it goes next.
// MaxAge == 0 means unbounded retention.
type TierPolicy struct {
	Tier      models.Tier
	MaxAge    time.Duration
	PromoteTo models.Tier
}

// Terminal reports whether the tier never promotes.
func (p TierPolicy) Terminal() bool {
	return p.PromoteTo == ""
}

// Unbounded reports whether snapshots of this tier never expire.
func (p TierPolicy) Unbounded() bool {
	return p.MaxAge == 0
}

var policies = map[models.Tier]TierPolicy{
	models.TierRealtime:  {Tier: models.TierRealtime, MaxAge: day, PromoteTo: models.TierHourly},
	models.TierHourly:    {Tier: models.TierHourly, MaxAge: 7 * day, PromoteTo: models.TierDaily},
	models.TierDaily:     {Tier: models.TierDaily, MaxAge: 90 * day, PromoteTo: models.TierWeekly},
	models.TierWeekly:    {Tier: models.TierWeekly, MaxAge: 365 * day, PromoteTo: models.TierMonthly},
	models.TierMonthly:   {Tier: models.TierMonthly},
	models.TierMilestone: {Tier: models.TierMilestone},
}

// Lookup returns the policy of tier.
func Lookup(tier models.Tier) (TierPolicy, error) {
	p, ok := policies[tier]
	if !ok {
		return TierPolicy{}, fmt.Errorf("%w: %q", common.ErrUnknownTier, tier)
	}
	return p, nil
}

// PromotableTiers returns the non-terminal tiers in escalation order.
func PromotableTiers() []TierPolicy {
	var out []TierPolicy
	for _, t := range models.AllTiers {
		if p := policies[t]; !p.Terminal() {
			out = append(out, p)
		}
	}
	return out
}

// CalculateExpirationDate returns capturedAt + MaxAge of tier, or nil for
// tiers with unbounded retention (monthly, milestone) and unknown tiers.
func CalculateExpirationDate(capturedAt time.Time, tier models.Tier) *time.Time {
	p, ok := policies[tier]
	if !ok || p.Unbounded() {
		return nil
	}
	exp := capturedAt.UTC().Add(p.MaxAge)
	return &exp
}

// IsDueForPromotion reports whether s has outlived its tier and can move up.
// Milestones are never due.
func IsDueForPromotion(s *models.Snapshot, now time.Time) bool {
	if s.IsMilestone || s.RetentionTier == models.TierMilestone {
		return false
	}
	p, ok := policies[s.RetentionTier]
	if !ok || p.Terminal() {
		return false
	}
	return now.Sub(s.CapturedAt) > p.MaxAge
}

// IsExpired reports whether s has passed its ExpiresAt. Milestones never expire.
func IsExpired(s *models.Snapshot, now time.Time) bool {
	if s.IsMilestone || s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// CanTransition reports whether a snapshot may move from one tier to another:
// one step up the escalation chain, or to milestone from anywhere but itself.
func CanTransition(from, to models.Tier) bool {
	if from == to {
		return false
	}
	if to == models.TierMilestone {
		return from.Valid()
	}
	p, ok := policies[from]
	return ok && p.PromoteTo == to
}
