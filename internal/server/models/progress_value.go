package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Domain tags the variant held by a TaggedValue.
type Domain string

const (
	DomainSkill         Domain = "skill"
	DomainBoss          Domain = "boss"
	DomainQuest         Domain = "quest"
	DomainDiary         Domain = "diary"
	DomainUnlock        Domain = "unlock"
	DomainCollectionLog Domain = "collection_log"
	DomainGuideStep     Domain = "guide_step"
	DomainCustom        Domain = "custom"
)

// ProgressValue is implemented by every variant of the progress sum type.
type ProgressValue interface {
	Domain() Domain
}

type SkillValue struct {
	Skill      string `json:"skill"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience,omitempty"`
}

type BossValue struct {
	Boss      string `json:"boss"`
	KillCount int    `json:"killCount"`
}

type QuestValue struct {
	Quest string     `json:"quest"`
	State QuestState `json:"state"`
}

type DiaryValue struct {
	Region   string `json:"region"`
	Tier     string `json:"tier"`
	Complete bool   `json:"complete"`
}

type UnlockValue struct {
	Key      string `json:"key"`
	Unlocked bool   `json:"unlocked"`
}

type CollectionLogValue struct {
	ItemID   int  `json:"itemId"`
	Obtained bool `json:"obtained"`
}

type GuideStepValue struct {
	Guide string `json:"guide"`
	Step  int    `json:"step"`
	Done  bool   `json:"done"`
}

// CustomValue keeps payloads of unknown or free-form domains verbatim.
type CustomValue struct {
	Tag string          `json:"-"`
	Raw json.RawMessage `json:"-"`
}

func (SkillValue) Domain() Domain         { return DomainSkill }
func (BossValue) Domain() Domain          { return DomainBoss }
func (QuestValue) Domain() Domain         { return DomainQuest }
func (DiaryValue) Domain() Domain         { return DomainDiary }
func (UnlockValue) Domain() Domain        { return DomainUnlock }
func (CollectionLogValue) Domain() Domain { return DomainCollectionLog }
func (GuideStepValue) Domain() Domain     { return DomainGuideStep }
func (CustomValue) Domain() Domain        { return DomainCustom }

// TaggedValue is the stored form of a ProgressValue:
//
//	{"domain": "skill", "value": {"skill": "attack", "level": 99}}
type TaggedValue struct {
	Value ProgressValue
}

func NewTaggedValue(v ProgressValue) *TaggedValue {
	return &TaggedValue{Value: v}
}

type taggedWire struct {
	Domain Domain          `json:"domain"`
	Value  json.RawMessage `json:"value"`
}

func (t TaggedValue) MarshalJSON() ([]byte, error) {
	if t.Value == nil {
		return []byte("null"), nil
	}

	if c, ok := t.Value.(CustomValue); ok {
		tag := Domain(c.Tag)
		if tag == "" {
			tag = DomainCustom
		}
		raw := c.Raw
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		return json.Marshal(taggedWire{Domain: tag, Value: raw})
	}

	raw, err := json.Marshal(t.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedWire{Domain: t.Value.Domain(), Value: raw})
}

var decoders = map[Domain]func(json.RawMessage) (ProgressValue, error){
	DomainSkill:         decodeAs[SkillValue],
	DomainBoss:          decodeAs[BossValue],
	DomainQuest:         decodeAs[QuestValue],
	DomainDiary:         decodeAs[DiaryValue],
	DomainUnlock:        decodeAs[UnlockValue],
	DomainCollectionLog: decodeAs[CollectionLogValue],
	DomainGuideStep:     decodeAs[GuideStepValue],
}

func decodeAs[T ProgressValue](raw json.RawMessage) (ProgressValue, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *TaggedValue) UnmarshalJSON(b []byte) error {
	var w taggedWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Domain == "" {
		return errors.New("tagged value: missing domain")
	}

	decode, ok := decoders[w.Domain]
	if !ok {
		t.Value = CustomValue{Tag: string(w.Domain), Raw: append(json.RawMessage(nil), w.Value...)}
		return nil
	}

	v, err := decode(w.Value)
	if err != nil {
		return fmt.Errorf("tagged value %s: %w", w.Domain, err)
	}
	t.Value = v
	return nil
}
