package services

import (
	"context"

	"civicforge/internal/models"
	"civicforge/internal/repositories"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ActivationService promotes a passed proposal's design to active. Under
// concurrent activations exactly one design wins; every loser gets a clean
// ConcurrentActivation error and no partial state.
type ActivationService struct {
	designs   repositories.DesignRepository
	proposals repositories.ProposalRepository
	resolver  *ConfigResolver
	logger    *zap.Logger
}

// NewActivationService creates an activation service
func NewActivationService(
	designs repositories.DesignRepository,
	proposals repositories.ProposalRepository,
	resolver *ConfigResolver,
	logger *zap.Logger,
) *ActivationService {
	return &ActivationService{
		designs:   designs,
		proposals: proposals,
		resolver:  resolver,
		logger:    logger,
	}
}

// Activate swaps the design linked to a passed proposal into the active
// slot: the previous active design (if any) is archived and the draft
// promoted, atomically. On success the community's cached config is
// invalidated.
func (s *ActivationService) Activate(ctx context.Context, proposalID uuid.UUID, actor Actor) (*models.GameDesign, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, NewInternalError("failed to load proposal", err)
	}
	if proposal == nil || proposal.CommunityID != actor.CommunityID {
		return nil, NewNotFoundError("proposal")
	}
	if proposal.Status != models.ProposalStatusPassed {
		return nil, NewInvalidTransitionError(proposal.Status, "activate")
	}

	design, err := s.designs.GetBySubmittedProposal(ctx, proposalID)
	if err != nil {
		return nil, NewInternalError("failed to load design", err)
	}
	if design == nil || design.CommunityID != actor.CommunityID {
		return nil, NewNotFoundError("design")
	}
	if design.Status != models.DesignStatusDraft {
		return nil, NewInvalidTransitionError(design.Status, "activate")
	}

	if err := s.designs.Activate(ctx, design.ID, design.CommunityID, proposalID); err != nil {
		if err == repositories.ErrConcurrentActivation {
			return nil, NewConcurrentActivationError()
		}
		return nil, NewInternalError("failed to activate design", err)
	}

	if err := s.resolver.Invalidate(ctx, design.CommunityID); err != nil {
		// The swap is committed; a stale cache entry expires on its own TTL
		s.logger.Warn("Failed to invalidate config cache after activation",
			zap.String("community_id", design.CommunityID.String()), zap.Error(err))
	}

	design.Status = models.DesignStatusActive
	design.ActivatedByProposalID = &proposalID

	s.logger.Info("Design activated",
		zap.String("design_id", design.ID.String()),
		zap.String("proposal_id", proposalID.String()),
		zap.Int("version", design.Version))
	return design, nil
}
