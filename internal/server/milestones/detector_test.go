package milestones

import (
	"testing"

	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func character(total, combat int, skills ...models.SkillSnapshot) *models.Snapshot {
	return &models.Snapshot{ID: "cur", ProfileID: "c1", TotalLevel: total, CombatLevel: combat, Skills: skills}
}

func skill(name string, level int) models.SkillSnapshot {
	return models.SkillSnapshot{Name: name, Level: level}
}

func types(ms []models.Milestone) []models.MilestoneType {
	out := make([]models.MilestoneType, len(ms))
	for i, m := range ms {
		out[i] = m.Type
	}
	return out
}

func TestDetect_FirstSync(t *testing.T) {
	got := Detect(nil, character(600, 80))
	require.Len(t, got, 1)
	assert.Equal(t, models.MilestoneFirstSync, got[0].Type)
	assert.Equal(t, "cur", got[0].SnapshotID)
	assert.Equal(t, models.SkillValue{Skill: "overall", Level: 600}, got[0].Data.Value)

	assert.Empty(t, Detect(nil, character(50, 3)))
	assert.Empty(t, Detect(nil, nil))
}

func TestDetect_Level99(t *testing.T) {
	prev := character(1500, 90, skill("fishing", 98))
	cur := character(1501, 90, skill("fishing", 99))

	got := Detect(prev, cur)
	require.Len(t, got, 1)
	assert.Equal(t, models.MilestoneLevel99, got[0].Type)
	assert.Equal(t, models.SkillValue{Skill: "fishing", Level: 99}, got[0].Data.Value)

	// already 99
	assert.Empty(t, Detect(cur, cur))
}

func TestDetect_CombatSkillBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		skill     string
		from, to  int
		wantLevel int
		want      bool
	}{
		{"crosses 70", "attack", 69, 70, 70, true},
		{"crosses 80", "prayer", 79, 81, 80, true},
		{"jump reports highest", "strength", 65, 92, 90, true},
		{"non combat skill", "woodcutting", 69, 70, 0, false},
		{"below 70", "magic", 59, 60, 0, false},
		{"no crossing", "ranged", 71, 79, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(character(1000, 90, skill(tt.skill, tt.from)), character(1000, 90, skill(tt.skill, tt.to)))
			if !tt.want {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, models.MilestoneLevel, got[0].Type)
			assert.Equal(t, tt.wantLevel, got[0].Data.Value.(models.SkillValue).Level)
		})
	}
}

func TestDetect_CombatSkillTo99EmitsBoth(t *testing.T) {
	got := Detect(character(1000, 90, skill("defence", 89)), character(1000, 90, skill("defence", 99)))
	assert.ElementsMatch(t, []models.MilestoneType{models.MilestoneLevel99, models.MilestoneLevel}, types(got))
}

func TestDetect_TotalLevel(t *testing.T) {
	tests := []struct {
		prev, cur int
		want      models.MilestoneType
		level     int
	}{
		{1499, 1500, models.MilestoneTotalLevel, 1500},
		{1590, 1650, models.MilestoneTotalLevel, 1600},
		{1610, 1650, "", 0},
		{1999, 2000, models.MilestoneTotalLevel, 2000},
		{2010, 2240, "", 0},
		{2240, 2260, models.MilestoneTotalLevel, 2250},
		{2276, 2277, models.MilestoneMaxTotal, 2277},
		{1400, 1499, "", 0},
		{2000, 1990, "", 0},
	}
	for _, tt := range tests {
		got := Detect(character(tt.prev, 90), character(tt.cur, 90))
		if tt.want == "" {
			assert.Empty(t, got, "%d -> %d", tt.prev, tt.cur)
			continue
		}
		require.Len(t, got, 1, "%d -> %d", tt.prev, tt.cur)
		assert.Equal(t, tt.want, got[0].Type)
		assert.Equal(t, tt.level, got[0].Data.Value.(models.SkillValue).Level)
	}
}

func TestDetect_CombatLevel(t *testing.T) {
	got := Detect(character(1000, 99), character(1000, 100))
	assert.Equal(t, []models.MilestoneType{models.MilestoneCombat}, types(got))

	got = Detect(character(1000, 125), character(1000, 126))
	assert.Equal(t, []models.MilestoneType{models.MilestoneMaxCombat}, types(got))

	// a jump past both only reports the maximum
	got = Detect(character(1000, 95), character(1000, 126))
	assert.Equal(t, []models.MilestoneType{models.MilestoneMaxCombat}, types(got))
}

func TestDetect_SkillMissingFromPrevious(t *testing.T) {
	got := Detect(character(1000, 90), character(1000, 90, skill("sailing", 99)))
	assert.Empty(t, got)
}
