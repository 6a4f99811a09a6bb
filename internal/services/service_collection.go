package services

import (
	"civicforge/internal/cache"
	"civicforge/internal/config"
	"civicforge/internal/repositories"

	"go.uber.org/zap"
)

// Collection bundles every service for dependency injection into handlers
type Collection struct {
	Resolver   *ConfigResolver
	Drafts     *DraftService
	Governance *GovernanceService
	Activation *ActivationService
}

// NewCollection wires the services against shared repositories, cache, and
// governance policy
func NewCollection(repos *repositories.Collection, c cache.Cache, cfg *config.Config, clock Clock, logger *zap.Logger) *Collection {
	resolver := NewConfigResolver(repos.Designs, c, cfg.Cache.TTL, logger)
	return &Collection{
		Resolver: resolver,
		Drafts: NewDraftService(repos.Designs, repos.Proposals, repos.Templates,
			cfg.Governance, clock, logger),
		Governance: NewGovernanceService(repos.Proposals, repos.Votes,
			repos.Designs, cfg.Governance, clock, logger),
		Activation: NewActivationService(repos.Designs, repos.Proposals,
			resolver, logger),
	}
}
