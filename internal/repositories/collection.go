package repositories

import (
	"civicforge/internal/database"

	"go.uber.org/zap"
)

// Collection bundles all repositories for dependency injection
type Collection struct {
	Designs   DesignRepository
	Proposals ProposalRepository
	Votes     VoteRepository
	Templates TemplateRepository
}

// NewCollection wires every repository against the shared manager
func NewCollection(db *database.Manager, logger *zap.Logger) *Collection {
	return &Collection{
		Designs:   NewDesignRepository(db, logger),
		Proposals: NewProposalRepository(db, logger),
		Votes:     NewVoteRepository(db, logger),
		Templates: NewTemplateRepository(db, logger),
	}
}
