package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civicforge/internal/cache"
	"civicforge/internal/models"
	"civicforge/internal/repositories"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ConfigResolver resolves the active game configuration for a community.
// Resolution is read-only and cache-aside: concurrent resolves may each hit
// the database, but all return equivalent configs.
type ConfigResolver struct {
	designs repositories.DesignRepository
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewConfigResolver creates a config resolver
func NewConfigResolver(designs repositories.DesignRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *ConfigResolver {
	return &ConfigResolver{designs: designs, cache: c, ttl: ttl, logger: logger}
}

func configCacheKey(communityID uuid.UUID) string {
	return fmt.Sprintf("gameconfig:%s", communityID)
}

// Resolve returns the community's active config, from cache when possible.
// Communities without an active design get a NoActiveConfig error.
func (r *ConfigResolver) Resolve(ctx context.Context, communityID uuid.UUID) (*models.GameConfig, error) {
	key := configCacheKey(communityID)

	if data, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		var cfg models.GameConfig
		if err := json.Unmarshal(data, &cfg); err == nil {
			return &cfg, nil
		}
		// Corrupt entry: drop it and resolve from the store
		_ = r.cache.Delete(ctx, key)
	} else if err != nil {
		r.logger.Warn("Cache read failed, resolving from store",
			zap.String("community_id", communityID.String()), zap.Error(err))
	}

	design, err := r.designs.GetActiveByCommunity(ctx, communityID)
	if err != nil {
		return nil, NewInternalError("failed to load active design", err)
	}
	if design == nil {
		return nil, NewNoActiveConfigError()
	}

	cfg, err := r.assemble(ctx, design)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cfg); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn("Failed to cache resolved config",
				zap.String("community_id", communityID.String()), zap.Error(err))
		}
	}
	return cfg, nil
}

// ResolveOrClassic returns the active config, falling back to the built-in
// Classic rule set for communities that have not activated anything
func (r *ConfigResolver) ResolveOrClassic(ctx context.Context, communityID uuid.UUID) (*models.GameConfig, error) {
	cfg, err := r.Resolve(ctx, communityID)
	if err != nil {
		if IsNoActiveConfig(err) {
			return models.ClassicConfig(communityID), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Invalidate drops the community's cached config. Called after activation.
func (r *ConfigResolver) Invalidate(ctx context.Context, communityID uuid.UUID) error {
	if err := r.cache.Delete(ctx, configCacheKey(communityID)); err != nil {
		return NewInternalError("failed to invalidate config cache", err)
	}
	return nil
}

func (r *ConfigResolver) assemble(ctx context.Context, design *models.GameDesign) (*models.GameConfig, error) {
	questTypes, err := r.designs.ListQuestTypes(ctx, design.ID)
	if err != nil {
		return nil, NewInternalError("failed to load quest types", err)
	}
	skillDomains, err := r.designs.ListSkillDomains(ctx, design.ID)
	if err != nil {
		return nil, NewInternalError("failed to load skill domains", err)
	}
	tiers, err := r.designs.ListRecognitionTiers(ctx, design.ID)
	if err != nil {
		return nil, NewInternalError("failed to load recognition tiers", err)
	}
	sources, err := r.designs.ListRecognitionSources(ctx, design.ID)
	if err != nil {
		return nil, NewInternalError("failed to load recognition sources", err)
	}

	return &models.GameConfig{
		DesignID:           design.ID,
		CommunityID:        design.CommunityID,
		Name:               design.Name,
		ValueStatement:     design.ValueStatement,
		Version:            design.Version,
		QuestTypes:         questTypes,
		SkillDomains:       skillDomains,
		RecognitionTiers:   tiers,
		RecognitionSources: sources,
	}, nil
}
