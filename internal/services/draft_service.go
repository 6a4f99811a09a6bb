package services

import (
	"context"
	"strings"
	"time"

	"civicforge/internal/config"
	"civicforge/internal/models"
	"civicforge/internal/repositories"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// DraftService manages draft designs: creation, editing, and submission
// into governance
type DraftService struct {
	designs   repositories.DesignRepository
	proposals repositories.ProposalRepository
	templates repositories.TemplateRepository
	policy    config.GovernanceConfig
	clock     Clock
	logger    *zap.Logger
}

// NewDraftService creates a draft service
func NewDraftService(
	designs repositories.DesignRepository,
	proposals repositories.ProposalRepository,
	templates repositories.TemplateRepository,
	policy config.GovernanceConfig,
	clock Clock,
	logger *zap.Logger,
) *DraftService {
	return &DraftService{
		designs:   designs,
		proposals: proposals,
		templates: templates,
		policy:    policy,
		clock:     clock,
		logger:    logger,
	}
}

// CreateFromTemplate clones a catalog template into a new draft design for
// the actor's community. Design row and children land in one transaction.
func (s *DraftService) CreateFromTemplate(ctx context.Context, req *CreateFromTemplateRequest) (*DraftView, error) {
	if err := models.Validate(req); err != nil {
		return nil, NewValidationError("invalid request", err.Error())
	}

	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, NewInternalError("failed to load template", err)
	}
	if template == nil {
		return nil, NewNotFoundError("template")
	}

	version, err := s.nextVersion(ctx, req.Actor.CommunityID)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = template.Name
	}

	design := &models.GameDesign{
		CommunityID:    req.Actor.CommunityID,
		Name:           name,
		Description:    template.Description,
		ValueStatement: template.ValueStatement,
		Status:         models.DesignStatusDraft,
		Version:        version,
		TemplateID:     &template.ID,
		CreatedBy:      req.Actor.ID,
	}

	if err := s.designs.CreateWithChildren(ctx, design, &template.Config); err != nil {
		return nil, NewInternalError("failed to create design from template", err)
	}

	s.logger.Info("Draft created from template",
		zap.String("design_id", design.ID.String()),
		zap.String("template", template.Slug),
		zap.Int("version", design.Version))

	return s.loadView(ctx, design)
}

// ForkActive deep-copies the community's active design into a new draft,
// one version ahead and linked back to its parent
func (s *DraftService) ForkActive(ctx context.Context, actor Actor) (*DraftView, error) {
	active, err := s.designs.GetActiveByCommunity(ctx, actor.CommunityID)
	if err != nil {
		return nil, NewInternalError("failed to load active design", err)
	}
	if active == nil {
		return nil, NewNoActiveConfigError()
	}

	cfg, err := s.loadChildren(ctx, active.ID)
	if err != nil {
		return nil, err
	}

	design := &models.GameDesign{
		CommunityID:       actor.CommunityID,
		Name:              active.Name,
		Description:       active.Description,
		ValueStatement:    active.ValueStatement,
		DesignRationale:   active.DesignRationale,
		Status:            models.DesignStatusDraft,
		Version:           active.Version + 1,
		PreviousVersionID: &active.ID,
		TemplateID:        active.TemplateID,
		CreatedBy:         actor.ID,
		SunsetAt:          active.SunsetAt,
	}

	if err := s.designs.CreateWithChildren(ctx, design, cfg); err != nil {
		return nil, NewInternalError("failed to fork active design", err)
	}

	s.logger.Info("Active design forked",
		zap.String("design_id", design.ID.String()),
		zap.String("parent_id", active.ID.String()),
		zap.Int("version", design.Version))

	return s.loadView(ctx, design)
}

// GetDraft loads a design and its children. Designs outside the actor's
// community are reported as not found.
func (s *DraftService) GetDraft(ctx context.Context, designID uuid.UUID, actor Actor) (*DraftView, error) {
	design, err := s.loadScoped(ctx, designID, actor)
	if err != nil {
		return nil, err
	}
	return s.loadView(ctx, design)
}

// UpdateDraft mutates a draft's header fields. Only the creator of an
// unlocked draft may edit.
func (s *DraftService) UpdateDraft(ctx context.Context, req *UpdateDraftRequest) (*models.GameDesign, error) {
	if err := models.Validate(req); err != nil {
		return nil, NewValidationError("invalid request", err.Error())
	}

	design, err := s.loadEditable(ctx, req.DesignID, req.Actor)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		design.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		design.Description = *req.Description
	}
	if req.ValueStatement != nil {
		design.ValueStatement = *req.ValueStatement
	}
	if req.DesignRationale != nil {
		design.DesignRationale = *req.DesignRationale
	}
	if req.SunsetAt != nil {
		design.SunsetAt = req.SunsetAt
	}

	if err := s.designs.UpdateHeader(ctx, design); err != nil {
		return nil, NewInternalError("failed to update design", err)
	}
	return design, nil
}

// ===============================
// CHILD MUTATIONS
// ===============================

// AddQuestType appends a quest type to an editable draft
func (s *DraftService) AddQuestType(ctx context.Context, designID uuid.UUID, actor Actor, input *QuestTypeInput) (*models.QuestType, error) {
	if err := models.Validate(input); err != nil {
		return nil, NewValidationError("invalid quest type", err.Error())
	}
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}

	existing, err := s.designs.ListQuestTypes(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load quest types", err)
	}
	if len(existing) >= models.MaxQuestTypes {
		return nil, NewValidationError("quest type limit reached", "")
	}
	for _, qt := range existing {
		if qt.Slug == input.Slug {
			return nil, NewValidationError("quest type slug already exists", input.Slug)
		}
	}

	qt := questTypeFromInput(designID, input)
	if err := s.designs.AddQuestType(ctx, qt); err != nil {
		if repositories.IsUniqueViolation(err, "") {
			return nil, NewValidationError("quest type slug already exists", input.Slug)
		}
		return nil, NewInternalError("failed to add quest type", err)
	}
	return qt, nil
}

// UpdateQuestType replaces a quest type's fields, keyed by slug
func (s *DraftService) UpdateQuestType(ctx context.Context, designID uuid.UUID, actor Actor, input *QuestTypeInput) (*models.QuestType, error) {
	if err := models.Validate(input); err != nil {
		return nil, NewValidationError("invalid quest type", err.Error())
	}
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}

	qt := questTypeFromInput(designID, input)
	if err := s.designs.UpdateQuestType(ctx, qt); err != nil {
		if err == repositories.ErrStaleTransition {
			return nil, NewNotFoundError("quest type")
		}
		return nil, NewInternalError("failed to update quest type", err)
	}
	return qt, nil
}

// RemoveQuestType deletes a quest type by slug
func (s *DraftService) RemoveQuestType(ctx context.Context, designID uuid.UUID, actor Actor, slug string) error {
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return err
	}
	if err := s.designs.DeleteQuestType(ctx, designID, slug); err != nil {
		if err == repositories.ErrStaleTransition {
			return NewNotFoundError("quest type")
		}
		return NewInternalError("failed to remove quest type", err)
	}
	return nil
}

// AddSkillDomain appends a skill domain to an editable draft
func (s *DraftService) AddSkillDomain(ctx context.Context, designID uuid.UUID, actor Actor, input *SkillDomainInput) (*models.SkillDomain, error) {
	if err := models.Validate(input); err != nil {
		return nil, NewValidationError("invalid skill domain", err.Error())
	}
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}

	existing, err := s.designs.ListSkillDomains(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load skill domains", err)
	}
	if len(existing) >= models.MaxSkillDomains {
		return nil, NewValidationError("skill domain limit reached", "")
	}
	for _, sd := range existing {
		if sd.Slug == input.Slug {
			return nil, NewValidationError("skill domain slug already exists", input.Slug)
		}
	}

	sd := skillDomainFromInput(designID, input)
	if err := s.designs.AddSkillDomain(ctx, sd); err != nil {
		if repositories.IsUniqueViolation(err, "") {
			return nil, NewValidationError("skill domain slug already exists", input.Slug)
		}
		return nil, NewInternalError("failed to add skill domain", err)
	}
	return sd, nil
}

// UpdateSkillDomain replaces a skill domain's fields, keyed by slug
func (s *DraftService) UpdateSkillDomain(ctx context.Context, designID uuid.UUID, actor Actor, input *SkillDomainInput) (*models.SkillDomain, error) {
	if err := models.Validate(input); err != nil {
		return nil, NewValidationError("invalid skill domain", err.Error())
	}
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}

	sd := skillDomainFromInput(designID, input)
	if err := s.designs.UpdateSkillDomain(ctx, sd); err != nil {
		if err == repositories.ErrStaleTransition {
			return nil, NewNotFoundError("skill domain")
		}
		return nil, NewInternalError("failed to update skill domain", err)
	}
	return sd, nil
}

// RemoveSkillDomain deletes a skill domain by slug
func (s *DraftService) RemoveSkillDomain(ctx context.Context, designID uuid.UUID, actor Actor, slug string) error {
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return err
	}
	if err := s.designs.DeleteSkillDomain(ctx, designID, slug); err != nil {
		if err == repositories.ErrStaleTransition {
			return NewNotFoundError("skill domain")
		}
		return NewInternalError("failed to remove skill domain", err)
	}
	return nil
}

// AddRecognitionTier appends a tier to an editable draft
func (s *DraftService) AddRecognitionTier(ctx context.Context, designID uuid.UUID, actor Actor, input *RecognitionTierInput) (*models.RecognitionTier, error) {
	if err := models.Validate(input); err != nil {
		return nil, NewValidationError("invalid recognition tier", err.Error())
	}
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}

	existing, err := s.designs.ListRecognitionTiers(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load recognition tiers", err)
	}
	if len(existing) >= models.MaxRecognitionTiers {
		return nil, NewValidationError("recognition tier limit reached", "")
	}
	for _, rt := range existing {
		if rt.Name == input.Name {
			return nil, NewValidationError("recognition tier name already exists", input.Name)
		}
		if rt.TierNumber == input.TierNumber {
			return nil, NewValidationError("recognition tier number already exists", "")
		}
	}

	rt := tierFromInput(designID, input)
	if err := s.designs.AddRecognitionTier(ctx, rt); err != nil {
		if repositories.IsUniqueViolation(err, "") {
			return nil, NewValidationError("recognition tier conflicts with an existing tier", input.Name)
		}
		return nil, NewInternalError("failed to add recognition tier", err)
	}
	return rt, nil
}

// UpdateRecognitionTier replaces a tier's fields, keyed by name
func (s *DraftService) UpdateRecognitionTier(ctx context.Context, designID uuid.UUID, actor Actor, input *RecognitionTierInput) (*models.RecognitionTier, error) {
	if err := models.Validate(input); err != nil {
		return nil, NewValidationError("invalid recognition tier", err.Error())
	}
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}

	rt := tierFromInput(designID, input)
	if err := s.designs.UpdateRecognitionTier(ctx, rt); err != nil {
		if err == repositories.ErrStaleTransition {
			return nil, NewNotFoundError("recognition tier")
		}
		return nil, NewInternalError("failed to update recognition tier", err)
	}
	return rt, nil
}

// RemoveRecognitionTier deletes a tier by name. The remaining set must
// still satisfy the minimum tier count.
func (s *DraftService) RemoveRecognitionTier(ctx context.Context, designID uuid.UUID, actor Actor, name string) error {
	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return err
	}

	existing, err := s.designs.ListRecognitionTiers(ctx, designID)
	if err != nil {
		return NewInternalError("failed to load recognition tiers", err)
	}
	if len(existing) <= models.MinRecognitionTiers {
		return NewValidationError("cannot drop below the minimum tier count", "")
	}

	if err := s.designs.DeleteRecognitionTier(ctx, designID, name); err != nil {
		if err == repositories.ErrStaleTransition {
			return NewNotFoundError("recognition tier")
		}
		return NewInternalError("failed to remove recognition tier", err)
	}
	return nil
}

// ReplaceRecognitionSources swaps the full recognition source set
func (s *DraftService) ReplaceRecognitionSources(ctx context.Context, designID uuid.UUID, actor Actor, inputs []RecognitionSourceInput) ([]models.RecognitionSource, error) {
	seen := make(map[string]struct{}, len(inputs))
	sources := make([]models.RecognitionSource, 0, len(inputs))
	for i := range inputs {
		input := &inputs[i]
		if err := models.Validate(input); err != nil {
			return nil, NewValidationError("invalid recognition source", err.Error())
		}
		if _, dup := seen[input.SourceType]; dup {
			return nil, NewValidationError("duplicate recognition source", input.SourceType)
		}
		seen[input.SourceType] = struct{}{}
		sources = append(sources, models.RecognitionSource{
			GameDesignID: designID,
			SourceType:   input.SourceType,
			Amount:       input.Amount,
			MaxPerDay:    input.MaxPerDay,
		})
	}

	if _, err := s.loadEditable(ctx, designID, actor); err != nil {
		return nil, err
	}
	if err := s.designs.ReplaceRecognitionSources(ctx, designID, sources); err != nil {
		return nil, NewInternalError("failed to replace recognition sources", err)
	}
	return sources, nil
}

// ===============================
// SUBMISSION + DIFF
// ===============================

// SubmitForGovernance validates guardrails, opens the linked proposal
// already in deliberation, and locks the draft. Proposal creation and lock
// are atomic: a failed lock rolls the proposal back.
func (s *DraftService) SubmitForGovernance(ctx context.Context, designID uuid.UUID, actor Actor) (*SubmitResult, error) {
	if actor.Tier < s.policy.MinProposerTier {
		return nil, NewForbiddenError("keeper standing required to propose rule changes")
	}

	design, err := s.loadEditable(ctx, designID, actor)
	if err != nil {
		return nil, err
	}

	questTypes, err := s.designs.ListQuestTypes(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load quest types", err)
	}
	skillDomains, err := s.designs.ListSkillDomains(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load skill domains", err)
	}
	tiers, err := s.designs.ListRecognitionTiers(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load recognition tiers", err)
	}

	now := s.clock.Now()
	if violations := models.ValidateDesignGuardrails(design, questTypes, skillDomains, tiers, now); len(violations) > 0 {
		details := make([]string, len(violations))
		for i, v := range violations {
			details[i] = v.Error()
		}
		return nil, NewValidationError("design violates structural guardrails", strings.Join(details, "; "))
	}

	deliberationEnds := now.Add(time.Duration(s.policy.DeliberationDays) * 24 * time.Hour)
	proposal := &models.GovernanceProposal{
		CommunityID:        design.CommunityID,
		AuthorID:           actor.ID,
		Title:              "Adopt game design: " + design.Name,
		Description:        design.DesignRationale,
		Category:           models.ProposalCategoryGameDesign,
		VoteType:           models.VoteTypeQuadratic,
		Status:             models.ProposalStatusDeliberation,
		Quorum:             s.policy.DefaultQuorum,
		DeliberationEndsAt: &deliberationEnds,
	}

	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, NewInternalError("failed to create proposal", err)
	}
	if err := s.designs.Lock(ctx, designID, proposal.ID); err != nil {
		// Lock lost to a concurrent submit; the proposal row is orphaned
		// until the stale-proposal sweep expires it.
		if err == repositories.ErrStaleTransition {
			return nil, NewDraftLockedError()
		}
		return nil, NewInternalError("failed to lock design", err)
	}

	design.SubmittedProposalID = &proposal.ID
	s.logger.Info("Draft submitted for governance",
		zap.String("design_id", designID.String()),
		zap.String("proposal_id", proposal.ID.String()))

	return &SubmitResult{Design: design, Proposal: proposal}, nil
}

// DiffAgainstActive compares a draft with the community's active config.
// A community without an active design diffs against the empty config.
func (s *DraftService) DiffAgainstActive(ctx context.Context, designID uuid.UUID, actor Actor) (*models.DesignDiff, error) {
	design, err := s.loadScoped(ctx, designID, actor)
	if err != nil {
		return nil, err
	}

	draftChildren, err := s.loadChildren(ctx, design.ID)
	if err != nil {
		return nil, err
	}
	draftCfg := &models.GameConfig{
		QuestTypes:         draftChildren.QuestTypes,
		SkillDomains:       draftChildren.SkillDomains,
		RecognitionTiers:   draftChildren.RecognitionTiers,
		RecognitionSources: draftChildren.RecognitionSources,
	}

	var activeCfg *models.GameConfig
	active, err := s.designs.GetActiveByCommunity(ctx, actor.CommunityID)
	if err != nil {
		return nil, NewInternalError("failed to load active design", err)
	}
	if active != nil {
		activeChildren, err := s.loadChildren(ctx, active.ID)
		if err != nil {
			return nil, err
		}
		activeCfg = &models.GameConfig{
			QuestTypes:         activeChildren.QuestTypes,
			SkillDomains:       activeChildren.SkillDomains,
			RecognitionTiers:   activeChildren.RecognitionTiers,
			RecognitionSources: activeChildren.RecognitionSources,
		}
	}

	return DiffConfigs(draftCfg, activeCfg), nil
}

// ===============================
// HELPERS
// ===============================

func (s *DraftService) nextVersion(ctx context.Context, communityID uuid.UUID) (int, error) {
	active, err := s.designs.GetActiveByCommunity(ctx, communityID)
	if err != nil {
		return 0, NewInternalError("failed to load active design", err)
	}
	if active == nil {
		return 1, nil
	}
	return active.Version + 1, nil
}

// loadScoped fetches a design visible to the actor. Cross-community rows
// look identical to missing rows.
func (s *DraftService) loadScoped(ctx context.Context, designID uuid.UUID, actor Actor) (*models.GameDesign, error) {
	design, err := s.designs.GetByID(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load design", err)
	}
	if design == nil || design.CommunityID != actor.CommunityID {
		return nil, NewNotFoundError("design")
	}
	return design, nil
}

// loadEditable fetches a design the actor may mutate: in scope, owned by
// the actor, still an unlocked draft. Lock beats ownership: a locked draft
// is locked for everyone, creator included.
func (s *DraftService) loadEditable(ctx context.Context, designID uuid.UUID, actor Actor) (*models.GameDesign, error) {
	design, err := s.loadScoped(ctx, designID, actor)
	if err != nil {
		return nil, err
	}
	if design.IsLocked() {
		return nil, NewDraftLockedError()
	}
	if design.CreatedBy != actor.ID {
		return nil, NewNotOwnerError()
	}
	return design, nil
}

func (s *DraftService) loadChildren(ctx context.Context, designID uuid.UUID) (*models.TemplateConfig, error) {
	questTypes, err := s.designs.ListQuestTypes(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load quest types", err)
	}
	skillDomains, err := s.designs.ListSkillDomains(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load skill domains", err)
	}
	tiers, err := s.designs.ListRecognitionTiers(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load recognition tiers", err)
	}
	sources, err := s.designs.ListRecognitionSources(ctx, designID)
	if err != nil {
		return nil, NewInternalError("failed to load recognition sources", err)
	}
	return &models.TemplateConfig{
		QuestTypes:         questTypes,
		SkillDomains:       skillDomains,
		RecognitionTiers:   tiers,
		RecognitionSources: sources,
	}, nil
}

func (s *DraftService) loadView(ctx context.Context, design *models.GameDesign) (*DraftView, error) {
	children, err := s.loadChildren(ctx, design.ID)
	if err != nil {
		return nil, err
	}
	return &DraftView{
		Design:             design,
		QuestTypes:         children.QuestTypes,
		SkillDomains:       children.SkillDomains,
		RecognitionTiers:   children.RecognitionTiers,
		RecognitionSources: children.RecognitionSources,
	}, nil
}

func questTypeFromInput(designID uuid.UUID, in *QuestTypeInput) *models.QuestType {
	return &models.QuestType{
		GameDesignID:        designID,
		Slug:                in.Slug,
		Label:               in.Label,
		Description:         in.Description,
		ValidationMethod:    in.ValidationMethod,
		ValidationThreshold: in.ValidationThreshold,
		RecognitionType:     in.RecognitionType,
		BaseRecognition:     in.BaseRecognition,
		NarrativePrompt:     in.NarrativePrompt,
		CooldownHours:       in.CooldownHours,
		MaxPartySize:        in.MaxPartySize,
		SortOrder:           in.SortOrder,
	}
}

func skillDomainFromInput(designID uuid.UUID, in *SkillDomainInput) *models.SkillDomain {
	return &models.SkillDomain{
		GameDesignID:      designID,
		Slug:              in.Slug,
		Label:             in.Label,
		Description:       in.Description,
		Examples:          in.Examples,
		VisibilityDefault: in.VisibilityDefault,
		SortOrder:         in.SortOrder,
	}
}

func tierFromInput(designID uuid.UUID, in *RecognitionTierInput) *models.RecognitionTier {
	return &models.RecognitionTier{
		GameDesignID:   designID,
		TierNumber:     in.TierNumber,
		Name:           in.Name,
		ThresholdType:  in.ThresholdType,
		ThresholdValue: in.ThresholdValue,
		Unlocks:        in.Unlocks,
	}
}
