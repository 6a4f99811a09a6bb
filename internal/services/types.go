package services

import (
	"time"

	"civicforge/internal/models"

	"github.com/gofrs/uuid"
)

// Actor identifies the already-authenticated member performing an
// operation. Tier is the member's recognition standing at request time.
type Actor struct {
	ID          uuid.UUID
	CommunityID uuid.UUID
	Tier        int
}

// ===============================
// DRAFT REQUESTS
// ===============================

// CreateFromTemplateRequest seeds a new draft from a catalog template
type CreateFromTemplateRequest struct {
	TemplateID uuid.UUID `validate:"required"`
	Name       string    `validate:"omitempty,max=120"`
	Actor      Actor     `validate:"required"`
}

// UpdateDraftRequest mutates a draft's header fields. Nil fields are
// left unchanged.
type UpdateDraftRequest struct {
	DesignID        uuid.UUID  `validate:"required"`
	Name            *string    `validate:"omitempty,min=1,max=120"`
	Description     *string    `validate:"omitempty,max=2000"`
	ValueStatement  *string    `validate:"omitempty,max=500"`
	DesignRationale *string    `validate:"omitempty,max=2000"`
	SunsetAt        *time.Time `validate:"-"`
	Actor           Actor      `validate:"required"`
}

// QuestTypeInput is the payload for adding or updating a quest type
type QuestTypeInput struct {
	Slug                string `json:"slug" validate:"required,min=1,max=60"`
	Label               string `json:"label" validate:"required,max=120"`
	Description         string `json:"description" validate:"max=1000"`
	ValidationMethod    string `json:"validation_method" validate:"required,oneof=self_report single_witness multi_witness photo"`
	ValidationThreshold int    `json:"validation_threshold" validate:"gte=0,lte=10"`
	RecognitionType     string `json:"recognition_type" validate:"required,oneof=points narrative both"`
	BaseRecognition     int    `json:"base_recognition" validate:"gte=0,lte=1000"`
	NarrativePrompt     string `json:"narrative_prompt" validate:"max=500"`
	CooldownHours       int    `json:"cooldown_hours" validate:"gte=0"`
	MaxPartySize        int    `json:"max_party_size" validate:"gte=1,lte=50"`
	SortOrder           int    `json:"sort_order" validate:"gte=0"`
}

// SkillDomainInput is the payload for adding or updating a skill domain
type SkillDomainInput struct {
	Slug              string   `json:"slug" validate:"required,min=1,max=60"`
	Label             string   `json:"label" validate:"required,max=120"`
	Description       string   `json:"description" validate:"max=1000"`
	Examples          []string `json:"examples" validate:"max=10,dive,max=200"`
	VisibilityDefault string   `json:"visibility_default" validate:"required,oneof=public private"`
	SortOrder         int      `json:"sort_order" validate:"gte=0"`
}

// RecognitionTierInput is the payload for adding or updating a tier
type RecognitionTierInput struct {
	TierNumber     int      `json:"tier_number" validate:"required,gte=1,lte=7"`
	Name           string   `json:"name" validate:"required,min=1,max=60"`
	ThresholdType  string   `json:"threshold_type" validate:"required,oneof=points quests witnesses"`
	ThresholdValue int      `json:"threshold_value" validate:"gte=0"`
	Unlocks        []string `json:"unlocks" validate:"max=10,dive,max=60"`
}

// RecognitionSourceInput is the payload for the source replacement set
type RecognitionSourceInput struct {
	SourceType string  `json:"source_type" validate:"required,min=1,max=60"`
	Amount     float64 `json:"amount" validate:"gte=0"`
	MaxPerDay  *int    `json:"max_per_day" validate:"omitempty,gte=1"`
}

// ===============================
// GOVERNANCE REQUESTS
// ===============================

// CreateProposalRequest opens a standalone governance proposal
type CreateProposalRequest struct {
	Title       string `validate:"required,min=5,max=200"`
	Description string `validate:"required,min=10,max=5000"`
	Category    string `validate:"required,oneof=game_design rule_change general"`
	VoteType    string `validate:"required,oneof=quadratic approval"`
	Actor       Actor  `validate:"required"`
}

// CastVoteRequest casts one ballot. CreditsSpent applies to quadratic
// proposals only; approval ballots always carry weight 1.
type CastVoteRequest struct {
	ProposalID   uuid.UUID `validate:"required"`
	InFavor      bool      `validate:"-"`
	CreditsSpent int       `validate:"gte=0,lte=100"`
	Actor        Actor     `validate:"required"`
}

// DraftView is a draft design together with its child collections
type DraftView struct {
	Design             *models.GameDesign         `json:"design"`
	QuestTypes         []models.QuestType         `json:"quest_types"`
	SkillDomains       []models.SkillDomain       `json:"skill_domains"`
	RecognitionTiers   []models.RecognitionTier   `json:"recognition_tiers"`
	RecognitionSources []models.RecognitionSource `json:"recognition_sources"`
}

// SubmitResult reports the outcome of submitting a draft for governance
type SubmitResult struct {
	Design   *models.GameDesign         `json:"design"`
	Proposal *models.GovernanceProposal `json:"proposal"`
}

// TickReport summarizes one deadline-advancement pass
type TickReport struct {
	MovedToVoting int `json:"moved_to_voting"`
	Passed        int `json:"passed"`
	Rejected      int `json:"rejected"`
	Expired       int `json:"expired"`
	Errors        int `json:"errors"`
}
