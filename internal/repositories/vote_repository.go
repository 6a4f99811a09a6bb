package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"civicforge/internal/database"
	"civicforge/internal/models"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// voteRepository implements VoteRepository on Postgres
type voteRepository struct {
	*BaseRepository
}

// NewVoteRepository creates a vote repository
func NewVoteRepository(db *database.Manager, logger *zap.Logger) VoteRepository {
	return &voteRepository{BaseRepository: NewBaseRepository(db, logger)}
}

// CastVote inserts the ballot and applies its weight to the proposal tally
// in a single transaction. The unique (proposal_id, voter_id) index turns a
// raced double-insert into ErrDuplicateVote.
func (r *voteRepository) CastVote(ctx context.Context, vote *models.GovernanceVote) error {
	err := r.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO governance_votes (proposal_id, voter_id, in_favor,
				credits_spent, weight)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			vote.ProposalID, vote.VoterID, vote.InFavor,
			vote.CreditsSpent, vote.Weight,
		).Scan(&vote.ID, &vote.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}

		column := "votes_against"
		if vote.InFavor {
			column = "votes_for"
		}
		query := fmt.Sprintf(`
			UPDATE governance_proposals
			SET %s = %s + $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`, column, column)

		result, err := tx.ExecContext(ctx, query,
			vote.Weight, vote.ProposalID, models.ProposalStatusVoting)
		if err != nil {
			return fmt.Errorf("failed to update tally: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check tally result: %w", err)
		}
		// Proposal left the voting state between the service check and
		// this write; the ballot must not land.
		if affected == 0 {
			return ErrStaleTransition
		}
		return nil
	})
	if err != nil && IsUniqueViolation(err, "") {
		return ErrDuplicateVote
	}
	return err
}

func (r *voteRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*models.GovernanceVote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, proposal_id, voter_id, in_favor, credits_spent, weight,
			created_at
		FROM governance_votes
		WHERE proposal_id = $1
		ORDER BY created_at`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.GovernanceVote
	for rows.Next() {
		var v models.GovernanceVote
		if err := rows.Scan(&v.ID, &v.ProposalID, &v.VoterID, &v.InFavor,
			&v.CreditsSpent, &v.Weight, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &v)
	}
	return votes, rows.Err()
}

// RecountTallies rebuilds votes_for/votes_against from the ballot rows.
// Weights are stored as the integers applied at cast time, so the recount
// reproduces the tally exactly.
func (r *voteRepository) RecountTallies(ctx context.Context, proposalID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE governance_proposals p
		SET votes_for = COALESCE(t.for_sum, 0),
			votes_against = COALESCE(t.against_sum, 0),
			updated_at = NOW()
		FROM (
			SELECT
				SUM(weight) FILTER (WHERE in_favor) AS for_sum,
				SUM(weight) FILTER (WHERE NOT in_favor) AS against_sum
			FROM governance_votes
			WHERE proposal_id = $1
		) t
		WHERE p.id = $1`, proposalID)
	if err != nil {
		return fmt.Errorf("failed to recount tallies: %w", err)
	}
	return nil
}
