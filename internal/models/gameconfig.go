package models

import "github.com/gofrs/uuid"

// GameConfig is the fully resolved rule set a community plays by. It is
// assembled from a design row and its four child collections, never stored
// directly, and treated as immutable by consumers.
type GameConfig struct {
	DesignID           uuid.UUID           `json:"design_id"`
	CommunityID        uuid.UUID           `json:"community_id"`
	Name               string              `json:"name"`
	ValueStatement     string              `json:"value_statement"`
	Version            int                 `json:"version"`
	QuestTypes         []QuestType         `json:"quest_types"`
	SkillDomains       []SkillDomain       `json:"skill_domains"`
	RecognitionTiers   []RecognitionTier   `json:"recognition_tiers"`
	RecognitionSources []RecognitionSource `json:"recognition_sources"`
	IsClassicFallback  bool                `json:"is_classic_fallback,omitempty"`
}

// DiffSection lists natural keys that appear, disappear, or persist between
// two configs. Keys are sorted lexicographically.
type DiffSection struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}

// IsEmpty reports whether the section records no membership changes
func (s DiffSection) IsEmpty() bool {
	return len(s.Added) == 0 && len(s.Removed) == 0
}

// DesignDiff is a membership diff between a draft config and the active
// config, keyed by each collection's natural key.
type DesignDiff struct {
	QuestTypes         DiffSection `json:"quest_types"`
	SkillDomains       DiffSection `json:"skill_domains"`
	RecognitionTiers   DiffSection `json:"recognition_tiers"`
	RecognitionSources DiffSection `json:"recognition_sources"`
}

// HasChanges reports whether any collection gained or lost members
func (d *DesignDiff) HasChanges() bool {
	return !d.QuestTypes.IsEmpty() || !d.SkillDomains.IsEmpty() ||
		!d.RecognitionTiers.IsEmpty() || !d.RecognitionSources.IsEmpty()
}

// ClassicConfig returns the built-in default rule set used when a community
// has not activated a design of its own.
func ClassicConfig(communityID uuid.UUID) *GameConfig {
	return &GameConfig{
		CommunityID:       communityID,
		Name:              "Classic",
		ValueStatement:    "Show up for your neighbors and get recognized for it.",
		Version:           0,
		IsClassicFallback: true,
		QuestTypes: []QuestType{
			{
				Slug:                "helping-hand",
				Label:               "Helping Hand",
				Description:         "A one-off favor for a neighbor",
				ValidationMethod:    "single_witness",
				ValidationThreshold: 1,
				RecognitionType:     "points",
				BaseRecognition:     10,
				CooldownHours:       0,
				MaxPartySize:        1,
				SortOrder:           1,
			},
			{
				Slug:                "community-project",
				Label:               "Community Project",
				Description:         "An organized effort with multiple participants",
				ValidationMethod:    "multi_witness",
				ValidationThreshold: 2,
				RecognitionType:     "points",
				BaseRecognition:     50,
				CooldownHours:       24,
				MaxPartySize:        8,
				SortOrder:           2,
			},
		},
		SkillDomains: []SkillDomain{
			{Slug: "practical", Label: "Practical", Description: "Hands-on help", VisibilityDefault: "public", SortOrder: 1},
			{Slug: "social", Label: "Social", Description: "Bringing people together", VisibilityDefault: "public", SortOrder: 2},
		},
		RecognitionTiers: []RecognitionTier{
			{TierNumber: 1, Name: "Visitor", ThresholdType: "points", ThresholdValue: 0},
			{TierNumber: 2, Name: "Neighbor", ThresholdType: "points", ThresholdValue: 50, Unlocks: []string{"vote"}},
			{TierNumber: 3, Name: "Builder", ThresholdType: "points", ThresholdValue: 200, Unlocks: []string{"create_quests"}},
			{TierNumber: 4, Name: "Keeper", ThresholdType: "points", ThresholdValue: 500, Unlocks: []string{"propose_rule_changes"}},
		},
		RecognitionSources: []RecognitionSource{
			{SourceType: "quest_completion", Amount: 1},
			{SourceType: "witness_confirmation", Amount: 0.5},
		},
	}
}
