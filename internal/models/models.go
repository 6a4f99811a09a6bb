package models

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/lib/pq"
)

// ===============================
// STATUS CONSTANTS
// ===============================

// Design lifecycle states
const (
	DesignStatusDraft    = "draft"
	DesignStatusActive   = "active"
	DesignStatusArchived = "archived"
)

// Proposal lifecycle states
const (
	ProposalStatusDraft        = "draft"
	ProposalStatusDeliberation = "deliberation"
	ProposalStatusVoting       = "voting"
	ProposalStatusPassed       = "passed"
	ProposalStatusRejected     = "rejected"
	ProposalStatusExpired      = "expired"
)

// Vote weighting schemes
const (
	VoteTypeQuadratic = "quadratic"
	VoteTypeApproval  = "approval"
)

// Proposal categories
const (
	ProposalCategoryGameDesign = "game_design"
	ProposalCategoryRuleChange = "rule_change"
	ProposalCategoryGeneral    = "general"
)

// Membership tiers. Proposing a rule change requires keeper standing;
// voting requires neighbor standing.
const (
	TierVisitor  = 1
	TierNeighbor = 2
	TierBuilder  = 3
	TierKeeper   = 4
)

// IsTerminalProposalStatus reports whether a proposal can no longer change state
func IsTerminalProposalStatus(status string) bool {
	switch status {
	case ProposalStatusPassed, ProposalStatusRejected, ProposalStatusExpired:
		return true
	}
	return false
}

// ===============================
// ENTITIES
// ===============================

// Community is the owning scope for designs and proposals
type Community struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GameTemplate is a seedable starting configuration from the template catalog
type GameTemplate struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Slug           string         `json:"slug" db:"slug"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	ValueStatement string         `json:"value_statement" db:"value_statement"`
	Config         TemplateConfig `json:"config" db:"config"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// TemplateConfig is the JSON payload stored on a template row. It mirrors
// the shape of a resolved config minus identity columns.
type TemplateConfig struct {
	QuestTypes         []QuestType         `json:"quest_types"`
	SkillDomains       []SkillDomain       `json:"skill_domains"`
	RecognitionTiers   []RecognitionTier   `json:"recognition_tiers"`
	RecognitionSources []RecognitionSource `json:"recognition_sources"`
}

// GameDesign is a versioned community rule set. At most one design per
// community holds active status at any time.
type GameDesign struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	CommunityID           uuid.UUID  `json:"community_id" db:"community_id"`
	Name                  string     `json:"name" db:"name"`
	Description           string     `json:"description" db:"description"`
	ValueStatement        string     `json:"value_statement" db:"value_statement"`
	DesignRationale       string     `json:"design_rationale" db:"design_rationale"`
	Status                string     `json:"status" db:"status"`
	Version               int        `json:"version" db:"version"`
	PreviousVersionID     *uuid.UUID `json:"previous_version_id,omitempty" db:"previous_version_id"`
	TemplateID            *uuid.UUID `json:"template_id,omitempty" db:"template_id"`
	CreatedBy             uuid.UUID  `json:"created_by" db:"created_by"`
	SubmittedProposalID   *uuid.UUID `json:"submitted_proposal_id,omitempty" db:"submitted_proposal_id"`
	ActivatedByProposalID *uuid.UUID `json:"activated_by_proposal_id,omitempty" db:"activated_by_proposal_id"`
	SunsetAt              *time.Time `json:"sunset_at,omitempty" db:"sunset_at"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// IsLocked reports whether the design is frozen against edits. Submission
// locks a draft for the lifetime of its proposal.
func (d *GameDesign) IsLocked() bool {
	return d.SubmittedProposalID != nil || d.Status != DesignStatusDraft
}

// QuestType describes one kind of quest a community recognizes.
// Slug is the natural key within a design.
type QuestType struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	GameDesignID        uuid.UUID `json:"game_design_id" db:"game_design_id"`
	Slug                string    `json:"slug" db:"slug"`
	Label               string    `json:"label" db:"label"`
	Description         string    `json:"description" db:"description"`
	ValidationMethod    string    `json:"validation_method" db:"validation_method"`
	ValidationThreshold int       `json:"validation_threshold" db:"validation_threshold"`
	RecognitionType     string    `json:"recognition_type" db:"recognition_type"`
	BaseRecognition     int       `json:"base_recognition" db:"base_recognition"`
	NarrativePrompt     string    `json:"narrative_prompt" db:"narrative_prompt"`
	CooldownHours       int       `json:"cooldown_hours" db:"cooldown_hours"`
	MaxPartySize        int       `json:"max_party_size" db:"max_party_size"`
	SortOrder           int       `json:"sort_order" db:"sort_order"`
}

// SkillDomain describes an area of contribution. Slug is the natural key.
type SkillDomain struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	GameDesignID      uuid.UUID      `json:"game_design_id" db:"game_design_id"`
	Slug              string         `json:"slug" db:"slug"`
	Label             string         `json:"label" db:"label"`
	Description       string         `json:"description" db:"description"`
	Examples          pq.StringArray `json:"examples" db:"examples"`
	VisibilityDefault string         `json:"visibility_default" db:"visibility_default"`
	SortOrder         int            `json:"sort_order" db:"sort_order"`
}

// RecognitionTier is one rung of a community's standing ladder.
// Name is the natural key; tier numbers must also be unique per design.
type RecognitionTier struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	GameDesignID   uuid.UUID      `json:"game_design_id" db:"game_design_id"`
	TierNumber     int            `json:"tier_number" db:"tier_number"`
	Name           string         `json:"name" db:"name"`
	ThresholdType  string         `json:"threshold_type" db:"threshold_type"`
	ThresholdValue int            `json:"threshold_value" db:"threshold_value"`
	Unlocks        pq.StringArray `json:"unlocks" db:"unlocks"`
}

// RecognitionSource maps an activity kind to the recognition it grants.
// SourceType is the natural key.
type RecognitionSource struct {
	ID           uuid.UUID `json:"id" db:"id"`
	GameDesignID uuid.UUID `json:"game_design_id" db:"game_design_id"`
	SourceType   string    `json:"source_type" db:"source_type"`
	Amount       float64   `json:"amount" db:"amount"`
	MaxPerDay    *int      `json:"max_per_day,omitempty" db:"max_per_day"`
}

// GovernanceProposal tracks a rule change through its lifecycle:
// draft -> deliberation -> voting -> passed | rejected, with expiry for
// proposals that stall before voting.
type GovernanceProposal struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	CommunityID        uuid.UUID  `json:"community_id" db:"community_id"`
	AuthorID           uuid.UUID  `json:"author_id" db:"author_id"`
	Title              string     `json:"title" db:"title"`
	Description        string     `json:"description" db:"description"`
	Category           string     `json:"category" db:"category"`
	VoteType           string     `json:"vote_type" db:"vote_type"`
	Status             string     `json:"status" db:"status"`
	VotesFor           int        `json:"votes_for" db:"votes_for"`
	VotesAgainst       int        `json:"votes_against" db:"votes_against"`
	Quorum             int        `json:"quorum" db:"quorum"`
	DeliberationEndsAt *time.Time `json:"deliberation_ends_at,omitempty" db:"deliberation_ends_at"`
	VotingEndsAt       *time.Time `json:"voting_ends_at,omitempty" db:"voting_ends_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// GovernanceVote is one member's ballot on a proposal. Weight is stored
// as the rounded integer applied to the tally, so tallies can be
// recomputed exactly from the vote rows.
type GovernanceVote struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ProposalID   uuid.UUID `json:"proposal_id" db:"proposal_id"`
	VoterID      uuid.UUID `json:"voter_id" db:"voter_id"`
	InFavor      bool      `json:"in_favor" db:"in_favor"`
	CreditsSpent int       `json:"credits_spent" db:"credits_spent"`
	Weight       int       `json:"weight" db:"weight"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
