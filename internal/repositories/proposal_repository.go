package repositories

import (
	"context"
	"fmt"
	"time"

	"civicforge/internal/database"
	"civicforge/internal/models"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// proposalRepository implements ProposalRepository on Postgres
type proposalRepository struct {
	*BaseRepository
}

// NewProposalRepository creates a proposal repository
func NewProposalRepository(db *database.Manager, logger *zap.Logger) ProposalRepository {
	return &proposalRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const proposalColumns = `id, community_id, author_id, title, description,
	category, vote_type, status, votes_for, votes_against, quorum,
	deliberation_ends_at, voting_ends_at, created_at, updated_at`

func scanProposal(row interface{ Scan(...interface{}) error }) (*models.GovernanceProposal, error) {
	var p models.GovernanceProposal
	err := row.Scan(
		&p.ID, &p.CommunityID, &p.AuthorID, &p.Title, &p.Description,
		&p.Category, &p.VoteType, &p.Status, &p.VotesFor, &p.VotesAgainst,
		&p.Quorum, &p.DeliberationEndsAt, &p.VotingEndsAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *proposalRepository) Create(ctx context.Context, proposal *models.GovernanceProposal) error {
	query := `
		INSERT INTO governance_proposals (community_id, author_id, title,
			description, category, vote_type, status, quorum,
			deliberation_ends_at, voting_ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, votes_for, votes_against, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		proposal.CommunityID, proposal.AuthorID, proposal.Title,
		proposal.Description, proposal.Category, proposal.VoteType,
		proposal.Status, proposal.Quorum, proposal.DeliberationEndsAt,
		proposal.VotingEndsAt,
	).Scan(&proposal.ID, &proposal.VotesFor, &proposal.VotesAgainst,
		&proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

func (r *proposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GovernanceProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM governance_proposals WHERE id = $1`, proposalColumns)
	proposal, err := scanProposal(r.db.QueryRowContext(ctx, query, id))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

func (r *proposalRepository) ListByCommunity(ctx context.Context, communityID uuid.UUID, status string) ([]*models.GovernanceProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM governance_proposals WHERE community_id = $1`, proposalColumns)
	args := []interface{}{communityID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*models.GovernanceProposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	return proposals, rows.Err()
}

// transition performs a conditional status move. Zero rows affected means a
// concurrent writer already moved the proposal.
func (r *proposalRepository) transition(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition proposal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition result: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *proposalRepository) MarkDeliberation(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	return r.transition(ctx, `
		UPDATE governance_proposals
		SET status = $1, deliberation_ends_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		models.ProposalStatusDeliberation, endsAt, id, models.ProposalStatusDraft)
}

func (r *proposalRepository) MarkVoting(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	return r.transition(ctx, `
		UPDATE governance_proposals
		SET status = $1, voting_ends_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		models.ProposalStatusVoting, endsAt, id, models.ProposalStatusDeliberation)
}

func (r *proposalRepository) MarkOutcome(ctx context.Context, id uuid.UUID, outcome string) error {
	if outcome != models.ProposalStatusPassed && outcome != models.ProposalStatusRejected {
		return fmt.Errorf("invalid outcome status %q", outcome)
	}
	return r.transition(ctx, `
		UPDATE governance_proposals
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		outcome, id, models.ProposalStatusVoting)
}

func (r *proposalRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, `
		UPDATE governance_proposals
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`,
		models.ProposalStatusExpired, id,
		models.ProposalStatusDraft, models.ProposalStatusDeliberation)
}

func (r *proposalRepository) listByQuery(ctx context.Context, query string, args ...interface{}) ([]*models.GovernanceProposal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*models.GovernanceProposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	return proposals, rows.Err()
}

func (r *proposalRepository) ListDueForVoting(ctx context.Context, now time.Time) ([]*models.GovernanceProposal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM governance_proposals
		WHERE status = $1 AND deliberation_ends_at IS NOT NULL
			AND deliberation_ends_at <= $2
		ORDER BY deliberation_ends_at`, proposalColumns)
	return r.listByQuery(ctx, query, models.ProposalStatusDeliberation, now)
}

func (r *proposalRepository) ListDueForOutcome(ctx context.Context, now time.Time) ([]*models.GovernanceProposal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM governance_proposals
		WHERE status = $1 AND voting_ends_at IS NOT NULL
			AND voting_ends_at <= $2
		ORDER BY voting_ends_at`, proposalColumns)
	return r.listByQuery(ctx, query, models.ProposalStatusVoting, now)
}

func (r *proposalRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*models.GovernanceProposal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM governance_proposals
		WHERE status IN ($1, $2) AND created_at <= $3
		ORDER BY created_at`, proposalColumns)
	return r.listByQuery(ctx, query, models.ProposalStatusDraft,
		models.ProposalStatusDeliberation, cutoff)
}
