package models

// MilestoneType names a detected milestone event.
type MilestoneType string

const (
	MilestoneFirstSync  MilestoneType = "first_sync"
	MilestoneLevel99    MilestoneType = "level_99"
	MilestoneLevel      MilestoneType = "level_milestone"
	MilestoneMaxTotal   MilestoneType = "max_total"
	MilestoneTotalLevel MilestoneType = "total_level_milestone"
	MilestoneMaxCombat  MilestoneType = "max_combat"
	MilestoneCombat     MilestoneType = "combat_milestone"
)

// Milestone is an advisory detection. It does not pin anything by itself.
type Milestone struct {
	Type       MilestoneType `json:"type"`
	SnapshotID string        `json:"snapshotId"`
	Data       *TaggedValue  `json:"data,omitempty"`
}
