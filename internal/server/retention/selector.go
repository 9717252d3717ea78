package retention

import (
	"sort"

	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

// SelectBest picks the snapshot worth keeping among candidates that fold into
// one bucket. Priority, highest first:
//
//  1. milestones win outright (ties among them go to the latest capture)
//  2. higher-fidelity data source
//  3. more optional rich fields
//  4. higher total level
//  5. most recent capture
//
// Remaining ties are broken by id so the choice never depends on input order.
// ok is false only for an empty input.
func SelectBest(candidates []*models.Snapshot) (winner *models.Snapshot, losers []*models.Snapshot, ok bool) {
	if len(candidates) == 0 {
		return nil, nil, false
	}

	ranked := make([]*models.Snapshot, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return better(ranked[i], ranked[j])
	})

	return ranked[0], ranked[1:], true
}

// better reports whether a strictly outranks b.
func better(a, b *models.Snapshot) bool {
	if a.IsMilestone != b.IsMilestone {
		return a.IsMilestone
	}

	if !a.IsMilestone {
		if fa, fb := a.DataSource.Fidelity(), b.DataSource.Fidelity(); fa != fb {
			return fa > fb
		}
		if ra, rb := a.RichFieldCount(), b.RichFieldCount(); ra != rb {
			return ra > rb
		}
		if a.TotalLevel != b.TotalLevel {
			return a.TotalLevel > b.TotalLevel
		}
	}

	if !a.CapturedAt.Equal(b.CapturedAt) {
		return a.CapturedAt.After(b.CapturedAt)
	}
	return a.ID > b.ID
}
