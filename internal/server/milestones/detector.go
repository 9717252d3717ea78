// Package milestones detects progress milestones between consecutive
// snapshots and pins snapshots as permanent milestones on request.
//
// Detection is advisory. Only Service.Mark changes retention.
package milestones

import (
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
)

const (
	MaxTotalLevel  = 2277
	MaxCombatLevel = 126
	MaxSkillLevel  = 99

	// FirstSyncMinTotal is the total level a character's first snapshot
	// needs before it counts as a first sync worth keeping.
	FirstSyncMinTotal = 500

	combatMilestoneLevel = 100
)

// CombatSkills are the skills whose 70/80/90 boundaries count as milestones.
var CombatSkills = []string{"attack", "strength", "defence", "ranged", "magic", "hitpoints", "prayer"}

var levelBoundaries = []int{90, 80, 70}

func isCombatSkill(name string) bool {
	for _, s := range CombatSkills {
		if s == name {
			return true
		}
	}
	return false
}

// crossed reports whether the move from prev to cur crosses boundary upward.
func crossed(prev, cur, boundary int) bool {
	return prev < boundary && cur >= boundary
}

// Detect compares current with the character's previous snapshot (nil when
// current is the first one) and returns the milestones current reaches.
func Detect(previous, current *models.Snapshot) []models.Milestone {
	if current == nil {
		return nil
	}

	var out []models.Milestone
	emit := func(t models.MilestoneType, v models.SkillValue) {
		out = append(out, models.Milestone{
			Type:       t,
			SnapshotID: current.ID,
			Data:       models.NewTaggedValue(v),
		})
	}

	if previous == nil {
		if current.TotalLevel >= FirstSyncMinTotal {
			emit(models.MilestoneFirstSync, models.SkillValue{
				Skill:      "overall",
				Level:      current.TotalLevel,
				Experience: current.TotalExperience,
			})
		}
		return out
	}

	for _, sk := range current.Skills {
		prev, ok := previous.Skill(sk.Name)
		if !ok {
			continue
		}
		value := models.SkillValue{Skill: sk.Name, Level: sk.Level, Experience: sk.Experience}

		if crossed(prev.Level, sk.Level, MaxSkillLevel) {
			emit(models.MilestoneLevel99, value)
		}
		if isCombatSkill(sk.Name) {
			// one event per jump, at the highest boundary passed
			for _, b := range levelBoundaries {
				if crossed(prev.Level, sk.Level, b) {
					emit(models.MilestoneLevel, models.SkillValue{Skill: sk.Name, Level: b, Experience: sk.Experience})
					break
				}
			}
		}
	}

	if t, level, ok := totalLevelMilestone(previous.TotalLevel, current.TotalLevel); ok {
		emit(t, models.SkillValue{Skill: "overall", Level: level, Experience: current.TotalExperience})
	}

	switch {
	case crossed(previous.CombatLevel, current.CombatLevel, MaxCombatLevel):
		emit(models.MilestoneMaxCombat, models.SkillValue{Skill: "combat", Level: current.CombatLevel})
	case crossed(previous.CombatLevel, current.CombatLevel, combatMilestoneLevel):
		emit(models.MilestoneCombat, models.SkillValue{Skill: "combat", Level: combatMilestoneLevel})
	}

	return out
}

// totalLevelMilestone returns the highest total-level boundary crossed
// between prev and cur: the maximum total, then 250-multiples from 2000, then
// 100-multiples in [1500, 2000).
func totalLevelMilestone(prev, cur int) (models.MilestoneType, int, bool) {
	if cur <= prev {
		return "", 0, false
	}
	if crossed(prev, cur, MaxTotalLevel) {
		return models.MilestoneMaxTotal, MaxTotalLevel, true
	}

	if cur >= 2000 {
		b := cur / 250 * 250
		if crossed(prev, cur, b) {
			return models.MilestoneTotalLevel, b, true
		}
	}
	if cur >= 1500 {
		b := cur / 100 * 100
		if b >= 2000 {
			b = 1900
		}
		if crossed(prev, cur, b) {
			return models.MilestoneTotalLevel, b, true
		}
	}
	return "", 0, false
}
