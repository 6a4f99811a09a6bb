package services

import (
	"context"
	"math"
	"time"

	"civicforge/internal/config"
	"civicforge/internal/models"
	"civicforge/internal/repositories"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// GovernanceService runs proposals through their lifecycle: creation,
// deliberation, voting, and outcome evaluation
type GovernanceService struct {
	proposals repositories.ProposalRepository
	votes     repositories.VoteRepository
	designs   repositories.DesignRepository
	policy    config.GovernanceConfig
	clock     Clock
	logger    *zap.Logger
}

// NewGovernanceService creates a governance service
func NewGovernanceService(
	proposals repositories.ProposalRepository,
	votes repositories.VoteRepository,
	designs repositories.DesignRepository,
	policy config.GovernanceConfig,
	clock Clock,
	logger *zap.Logger,
) *GovernanceService {
	return &GovernanceService{
		proposals: proposals,
		votes:     votes,
		designs:   designs,
		policy:    policy,
		clock:     clock,
		logger:    logger,
	}
}

// QuadraticWeight converts spent credits into vote weight: the rounded
// square root, so influence grows sublinearly with spend. Credits 1..100
// map to weights 1..10.
func QuadraticWeight(credits int) int {
	if credits < 1 {
		return 0
	}
	return int(math.Round(math.Sqrt(float64(credits))))
}

// CreateProposal opens a standalone proposal in the draft state. Keeper
// standing is required.
func (s *GovernanceService) CreateProposal(ctx context.Context, req *CreateProposalRequest) (*models.GovernanceProposal, error) {
	if err := models.Validate(req); err != nil {
		return nil, NewValidationError("invalid request", err.Error())
	}
	if req.Actor.Tier < s.policy.MinProposerTier {
		return nil, NewForbiddenError("keeper standing required to propose rule changes")
	}

	proposal := &models.GovernanceProposal{
		CommunityID: req.Actor.CommunityID,
		AuthorID:    req.Actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		VoteType:    req.VoteType,
		Status:      models.ProposalStatusDraft,
		Quorum:      s.policy.DefaultQuorum,
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, NewInternalError("failed to create proposal", err)
	}

	s.logger.Info("Proposal created",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("category", proposal.Category),
		zap.String("vote_type", proposal.VoteType))
	return proposal, nil
}

// GetProposal loads a proposal scoped to the actor's community
func (s *GovernanceService) GetProposal(ctx context.Context, proposalID uuid.UUID, actor Actor) (*models.GovernanceProposal, error) {
	return s.loadScoped(ctx, proposalID, actor)
}

// ListProposals lists the community's proposals, optionally filtered by status
func (s *GovernanceService) ListProposals(ctx context.Context, actor Actor, status string) ([]*models.GovernanceProposal, error) {
	proposals, err := s.proposals.ListByCommunity(ctx, actor.CommunityID, status)
	if err != nil {
		return nil, NewInternalError("failed to list proposals", err)
	}
	return proposals, nil
}

// Submit moves a draft proposal into deliberation. Author only.
func (s *GovernanceService) Submit(ctx context.Context, proposalID uuid.UUID, actor Actor) (*models.GovernanceProposal, error) {
	proposal, err := s.loadScoped(ctx, proposalID, actor)
	if err != nil {
		return nil, err
	}
	if proposal.AuthorID != actor.ID {
		return nil, NewNotOwnerError()
	}
	if proposal.Status != models.ProposalStatusDraft {
		return nil, NewInvalidTransitionError(proposal.Status, "submit")
	}

	endsAt := s.clock.Now().Add(time.Duration(s.policy.DeliberationDays) * 24 * time.Hour)
	if err := s.proposals.MarkDeliberation(ctx, proposalID, endsAt); err != nil {
		if err == repositories.ErrStaleTransition {
			return nil, NewInvalidTransitionError(proposal.Status, "submit")
		}
		return nil, NewInternalError("failed to submit proposal", err)
	}

	proposal.Status = models.ProposalStatusDeliberation
	proposal.DeliberationEndsAt = &endsAt
	return proposal, nil
}

// AdvanceToVoting moves a proposal from deliberation into voting once its
// deliberation window has elapsed. Author-triggered; the periodic tick
// performs the same transition automatically.
func (s *GovernanceService) AdvanceToVoting(ctx context.Context, proposalID uuid.UUID, actor Actor) (*models.GovernanceProposal, error) {
	proposal, err := s.loadScoped(ctx, proposalID, actor)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusDeliberation {
		return nil, NewInvalidTransitionError(proposal.Status, "advance to voting")
	}

	now := s.clock.Now()
	if proposal.DeliberationEndsAt == nil || now.Before(*proposal.DeliberationEndsAt) {
		return nil, NewInvalidTransitionError(proposal.Status, "advance before deliberation ends")
	}

	endsAt := now.Add(time.Duration(s.policy.VotingDays) * 24 * time.Hour)
	if err := s.proposals.MarkVoting(ctx, proposalID, endsAt); err != nil {
		if err == repositories.ErrStaleTransition {
			return nil, NewInvalidTransitionError(proposal.Status, "advance to voting")
		}
		return nil, NewInternalError("failed to advance proposal", err)
	}

	proposal.Status = models.ProposalStatusVoting
	proposal.VotingEndsAt = &endsAt
	return proposal, nil
}

// CastVote records one ballot. The proposal must be in its voting window;
// weight is quadratic or approval per the proposal's vote type. The ballot
// and its tally increment land in one transaction, and a raced duplicate
// surfaces as AlreadyVoted.
func (s *GovernanceService) CastVote(ctx context.Context, req *CastVoteRequest) (*models.GovernanceVote, error) {
	if err := models.Validate(req); err != nil {
		return nil, NewValidationError("invalid request", err.Error())
	}
	if req.Actor.Tier < s.policy.MinVoterTier {
		return nil, NewForbiddenError("neighbor standing required to vote")
	}

	proposal, err := s.loadScoped(ctx, req.ProposalID, req.Actor)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusVoting {
		return nil, NewInvalidTransitionError(proposal.Status, "vote")
	}
	now := s.clock.Now()
	if proposal.VotingEndsAt != nil && !now.Before(*proposal.VotingEndsAt) {
		return nil, NewInvalidTransitionError(proposal.Status, "vote after the window closed")
	}

	var weight, credits int
	switch proposal.VoteType {
	case models.VoteTypeQuadratic:
		if req.CreditsSpent < 1 || req.CreditsSpent > 100 {
			return nil, NewValidationError("credits_spent must be between 1 and 100", "")
		}
		credits = req.CreditsSpent
		weight = QuadraticWeight(credits)
	case models.VoteTypeApproval:
		credits = 0
		weight = 1
	default:
		return nil, NewInternalError("unknown vote type", nil)
	}

	vote := &models.GovernanceVote{
		ProposalID:   proposal.ID,
		VoterID:      req.Actor.ID,
		InFavor:      req.InFavor,
		CreditsSpent: credits,
		Weight:       weight,
	}
	if err := s.votes.CastVote(ctx, vote); err != nil {
		switch err {
		case repositories.ErrDuplicateVote:
			return nil, NewAlreadyVotedError()
		case repositories.ErrStaleTransition:
			return nil, NewInvalidTransitionError(models.ProposalStatusVoting, "vote")
		}
		return nil, NewInternalError("failed to cast vote", err)
	}

	s.logger.Info("Vote cast",
		zap.String("proposal_id", proposal.ID.String()),
		zap.Bool("in_favor", vote.InFavor),
		zap.Int("weight", vote.Weight))
	return vote, nil
}

// EvaluateOutcome computes a voting proposal's final status as a pure
// function of the proposal and the current time. Quorum counts total
// weight on both sides; passing additionally requires a strict majority
// in favor. Returns an empty string while the window is still open.
func EvaluateOutcome(p *models.GovernanceProposal, now time.Time) string {
	if p.Status != models.ProposalStatusVoting {
		return ""
	}
	if p.VotingEndsAt == nil || now.Before(*p.VotingEndsAt) {
		return ""
	}
	total := p.VotesFor + p.VotesAgainst
	if total >= p.Quorum && p.VotesFor > p.VotesAgainst {
		return models.ProposalStatusPassed
	}
	return models.ProposalStatusRejected
}

// Tick advances every proposal whose deadline has passed. Idempotent and
// safe under overlapping invocations: each transition is a conditional
// update that at most one ticker wins; losers observe a stale transition
// and move on. Terminal proposals are never touched.
func (s *GovernanceService) Tick(ctx context.Context, now time.Time) (*TickReport, error) {
	report := &TickReport{}

	due, err := s.proposals.ListDueForVoting(ctx, now)
	if err != nil {
		return report, NewInternalError("failed to list proposals due for voting", err)
	}
	for _, p := range due {
		endsAt := now.Add(time.Duration(s.policy.VotingDays) * 24 * time.Hour)
		err := s.withRetry(ctx, func() error {
			return s.proposals.MarkVoting(ctx, p.ID, endsAt)
		})
		switch err {
		case nil:
			report.MovedToVoting++
		case repositories.ErrStaleTransition:
			// Another ticker or the author got there first
		default:
			report.Errors++
			s.logger.Error("Failed to open voting",
				zap.String("proposal_id", p.ID.String()), zap.Error(err))
		}
	}

	closing, err := s.proposals.ListDueForOutcome(ctx, now)
	if err != nil {
		return report, NewInternalError("failed to list proposals due for outcome", err)
	}
	for _, p := range closing {
		outcome := EvaluateOutcome(p, now)
		if outcome == "" {
			continue
		}
		err := s.withRetry(ctx, func() error {
			return s.proposals.MarkOutcome(ctx, p.ID, outcome)
		})
		switch err {
		case nil:
			if outcome == models.ProposalStatusPassed {
				report.Passed++
			} else {
				report.Rejected++
				s.logger.Info("Proposal rejected",
					zap.String("proposal_id", p.ID.String()),
					zap.Int("votes_for", p.VotesFor),
					zap.Int("votes_against", p.VotesAgainst),
					zap.Bool("quorum_met", p.VotesFor+p.VotesAgainst >= p.Quorum))
			}
		case repositories.ErrStaleTransition:
		default:
			report.Errors++
			s.logger.Error("Failed to close voting",
				zap.String("proposal_id", p.ID.String()), zap.Error(err))
		}
	}

	cutoff := now.Add(-s.policy.MaxLifetime)
	stale, err := s.proposals.ListStale(ctx, cutoff)
	if err != nil {
		return report, NewInternalError("failed to list stale proposals", err)
	}
	for _, p := range stale {
		err := s.withRetry(ctx, func() error {
			return s.proposals.MarkExpired(ctx, p.ID)
		})
		switch err {
		case nil:
			report.Expired++
		case repositories.ErrStaleTransition:
		default:
			report.Errors++
			s.logger.Error("Failed to expire proposal",
				zap.String("proposal_id", p.ID.String()), zap.Error(err))
		}
	}

	if report.MovedToVoting+report.Passed+report.Rejected+report.Expired+report.Errors > 0 {
		s.logger.Info("Governance tick completed",
			zap.Int("moved_to_voting", report.MovedToVoting),
			zap.Int("passed", report.Passed),
			zap.Int("rejected", report.Rejected),
			zap.Int("expired", report.Expired),
			zap.Int("errors", report.Errors))
	}
	return report, nil
}

// withRetry retries transient failures on governance-critical writes.
// Stale transitions are expected outcomes, not failures, and pass through
// immediately.
func (s *GovernanceService) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == repositories.ErrStaleTransition {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (s *GovernanceService) loadScoped(ctx context.Context, proposalID uuid.UUID, actor Actor) (*models.GovernanceProposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, NewInternalError("failed to load proposal", err)
	}
	if proposal == nil || proposal.CommunityID != actor.CommunityID {
		return nil, NewNotFoundError("proposal")
	}
	return proposal, nil
}
