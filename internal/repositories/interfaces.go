package repositories

import (
	"context"
	"time"

	"civicforge/internal/models"

	"github.com/gofrs/uuid"
)

// DesignRepository persists game designs and their child collections.
// Getters return (nil, nil) when the row does not exist.
type DesignRepository interface {
	Create(ctx context.Context, design *models.GameDesign) error
	CreateWithChildren(ctx context.Context, design *models.GameDesign, cfg *models.TemplateConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GameDesign, error)
	GetActiveByCommunity(ctx context.Context, communityID uuid.UUID) (*models.GameDesign, error)
	GetBySubmittedProposal(ctx context.Context, proposalID uuid.UUID) (*models.GameDesign, error)
	ListByCommunity(ctx context.Context, communityID uuid.UUID) ([]*models.GameDesign, error)
	UpdateHeader(ctx context.Context, design *models.GameDesign) error
	Lock(ctx context.Context, designID, proposalID uuid.UUID) error

	ListQuestTypes(ctx context.Context, designID uuid.UUID) ([]models.QuestType, error)
	AddQuestType(ctx context.Context, qt *models.QuestType) error
	UpdateQuestType(ctx context.Context, qt *models.QuestType) error
	DeleteQuestType(ctx context.Context, designID uuid.UUID, slug string) error

	ListSkillDomains(ctx context.Context, designID uuid.UUID) ([]models.SkillDomain, error)
	AddSkillDomain(ctx context.Context, sd *models.SkillDomain) error
	UpdateSkillDomain(ctx context.Context, sd *models.SkillDomain) error
	DeleteSkillDomain(ctx context.Context, designID uuid.UUID, slug string) error

	ListRecognitionTiers(ctx context.Context, designID uuid.UUID) ([]models.RecognitionTier, error)
	AddRecognitionTier(ctx context.Context, rt *models.RecognitionTier) error
	UpdateRecognitionTier(ctx context.Context, rt *models.RecognitionTier) error
	DeleteRecognitionTier(ctx context.Context, designID uuid.UUID, name string) error

	ListRecognitionSources(ctx context.Context, designID uuid.UUID) ([]models.RecognitionSource, error)
	ReplaceRecognitionSources(ctx context.Context, designID uuid.UUID, sources []models.RecognitionSource) error

	// Activate archives the community's current active design (if any) and
	// promotes the given draft in one transaction. Returns
	// ErrConcurrentActivation when the draft lost a race.
	Activate(ctx context.Context, designID, communityID, proposalID uuid.UUID) error
}

// ProposalRepository persists governance proposals. Transition methods are
// conditional on the current status and return ErrStaleTransition when the
// row was already moved by a concurrent writer.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *models.GovernanceProposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GovernanceProposal, error)
	ListByCommunity(ctx context.Context, communityID uuid.UUID, status string) ([]*models.GovernanceProposal, error)

	MarkDeliberation(ctx context.Context, id uuid.UUID, endsAt time.Time) error
	MarkVoting(ctx context.Context, id uuid.UUID, endsAt time.Time) error
	MarkOutcome(ctx context.Context, id uuid.UUID, outcome string) error
	MarkExpired(ctx context.Context, id uuid.UUID) error

	ListDueForVoting(ctx context.Context, now time.Time) ([]*models.GovernanceProposal, error)
	ListDueForOutcome(ctx context.Context, now time.Time) ([]*models.GovernanceProposal, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.GovernanceProposal, error)
}

// VoteRepository persists ballots and keeps proposal tallies consistent
// with the vote rows
type VoteRepository interface {
	// CastVote inserts the ballot and increments the proposal tally in one
	// transaction. Returns ErrDuplicateVote when the voter already voted.
	CastVote(ctx context.Context, vote *models.GovernanceVote) error
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*models.GovernanceVote, error)
	// RecountTallies recomputes votes_for/votes_against from the ballot rows
	RecountTallies(ctx context.Context, proposalID uuid.UUID) error
}

// TemplateRepository reads the template catalog
type TemplateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.GameTemplate, error)
	GetBySlug(ctx context.Context, slug string) (*models.GameTemplate, error)
	List(ctx context.Context) ([]*models.GameTemplate, error)
}
