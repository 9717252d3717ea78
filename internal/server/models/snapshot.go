package models

import "time"

// SkillSnapshot is one skill row of a snapshot.
type SkillSnapshot struct {
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience"`
	Rank       int    `json:"rank"`
}

// ActivityScore is a hiscores activity (boss kill count, clue count, ...).
type ActivityScore struct {
	Score int `json:"score"`
	Rank  int `json:"rank"`
}

// QuestState is the completion state of a quest.
type QuestState string

const (
	QuestNotStarted QuestState = "not_started"
	QuestInProgress QuestState = "in_progress"
	QuestFinished   QuestState = "finished"
)

// Snapshot is one capture of a character's full progress state.
//
// Optional rich fields are nil when the source did not provide them; an empty
// non-nil map still counts as provided.
type Snapshot struct {
	ID              string    `json:"id"`
	ProfileID       string    `json:"profileId"`
	CapturedAt      time.Time `json:"capturedAt"`
	TotalLevel      int       `json:"totalLevel"`
	TotalExperience int64     `json:"totalExperience"`
	CombatLevel     int       `json:"combatLevel"`

	Skills             []SkillSnapshot            `json:"skills"`
	Activities         map[string]ActivityScore   `json:"activities,omitempty"`
	Quests             map[string]QuestState      `json:"quests,omitempty"`
	Diaries            map[string]map[string]bool `json:"diaries,omitempty"`
	MusicUnlocks       map[string]bool            `json:"musicUnlocks,omitempty"`
	CombatAchievements []int                      `json:"combatAchievements,omitempty"`
	CollectionLog      []int                      `json:"collectionLog,omitempty"`

	DataSource    DataSource   `json:"dataSource"`
	RetentionTier Tier         `json:"retentionTier"`
	IsMilestone   bool         `json:"isMilestone"`
	MilestoneType string       `json:"milestoneType,omitempty"`
	MilestoneData *TaggedValue `json:"milestoneData,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

// RichFieldCount counts the optional fields the selector cares about:
// quests, diaries, combat achievements and collection log.
func (s *Snapshot) RichFieldCount() int {
	n := 0
	if s.Quests != nil {
		n++
	}
	if s.Diaries != nil {
		n++
	}
	if s.CombatAchievements != nil {
		n++
	}
	if s.CollectionLog != nil {
		n++
	}
	return n
}

// Skill returns the named skill row, if present.
func (s *Snapshot) Skill(name string) (SkillSnapshot, bool) {
	for _, sk := range s.Skills {
		if sk.Name == name {
			return sk, true
		}
	}
	return SkillSnapshot{}, false
}

// TierStat is a grouped aggregate over one tier of a character's snapshots.
type TierStat struct {
	Tier     Tier      `json:"tier"`
	Count    int64     `json:"count"`
	Oldest   time.Time `json:"oldest"`
	Newest   time.Time `json:"newest"`
	Expiring int64     `json:"expiring"`
}
