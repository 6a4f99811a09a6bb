package services

import (
	"context"
	"testing"
	"time"

	"civicforge/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type draftFixture struct {
	svc       *DraftService
	designs   *fakeDesignRepo
	proposals *fakeProposalRepo
	templates *fakeTemplateRepo
	clock     *fakeClock
	community uuid.UUID
	template  *models.GameTemplate
}

func classicTemplateConfig() models.TemplateConfig {
	return models.TemplateConfig{
		QuestTypes: []models.QuestType{
			{Slug: "helping-hand", Label: "Helping Hand", ValidationMethod: "single_witness", RecognitionType: "points", BaseRecognition: 10, MaxPartySize: 1, SortOrder: 1},
			{Slug: "community-project", Label: "Community Project", ValidationMethod: "multi_witness", RecognitionType: "points", BaseRecognition: 50, MaxPartySize: 8, SortOrder: 2},
		},
		SkillDomains: []models.SkillDomain{
			{Slug: "practical", Label: "Practical", VisibilityDefault: "public", SortOrder: 1},
		},
		RecognitionTiers: []models.RecognitionTier{
			{TierNumber: 1, Name: "Visitor", ThresholdType: "points"},
			{TierNumber: 2, Name: "Neighbor", ThresholdType: "points", ThresholdValue: 50},
		},
		RecognitionSources: []models.RecognitionSource{
			{SourceType: "quest_completion", Amount: 1},
		},
	}
}

func newDraftFixture(t *testing.T) *draftFixture {
	t.Helper()
	designs := newFakeDesignRepo()
	proposals := newFakeProposalRepo()
	templates := newFakeTemplateRepo()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	proposals.now = clock.Now

	template := templates.add(&models.GameTemplate{
		Slug:   "classic",
		Name:   "Classic",
		Config: classicTemplateConfig(),
	})

	svc := NewDraftService(designs, proposals, templates, testPolicy(), clock, zap.NewNop())
	return &draftFixture{
		svc:       svc,
		designs:   designs,
		proposals: proposals,
		templates: templates,
		clock:     clock,
		community: mustUUID(),
		template:  template,
	}
}

func (f *draftFixture) keeper() Actor {
	return Actor{ID: mustUUID(), CommunityID: f.community, Tier: models.TierKeeper}
}

func (f *draftFixture) newDraft(t *testing.T, owner Actor) *DraftView {
	t.Helper()
	view, err := f.svc.CreateFromTemplate(context.Background(), &CreateFromTemplateRequest{
		TemplateID: f.template.ID,
		Actor:      owner,
	})
	require.NoError(t, err)
	return view
}

func TestCreateFromTemplate_SeedsChildren(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()

	view := f.newDraft(t, owner)

	assert.Equal(t, models.DesignStatusDraft, view.Design.Status)
	assert.Equal(t, 1, view.Design.Version)
	assert.Equal(t, owner.ID, view.Design.CreatedBy)
	assert.Len(t, view.QuestTypes, 2)
	assert.Len(t, view.SkillDomains, 1)
	assert.Len(t, view.RecognitionTiers, 2)
	assert.Len(t, view.RecognitionSources, 1)
}

func TestCreateFromTemplate_UnknownTemplateIsNotFound(t *testing.T) {
	f := newDraftFixture(t)

	_, err := f.svc.CreateFromTemplate(context.Background(), &CreateFromTemplateRequest{
		TemplateID: mustUUID(),
		Actor:      f.keeper(),
	})
	assert.True(t, IsNotFoundError(err))
}

func TestForkActive_CopiesChildrenAndBumpsVersion(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()

	original := f.newDraft(t, owner)
	require.NoError(t, f.designs.Activate(context.Background(),
		original.Design.ID, f.community, mustUUID()))

	fork, err := f.svc.ForkActive(context.Background(), owner)
	require.NoError(t, err)

	assert.Equal(t, models.DesignStatusDraft, fork.Design.Status)
	assert.Equal(t, 2, fork.Design.Version)
	require.NotNil(t, fork.Design.PreviousVersionID)
	assert.Equal(t, original.Design.ID, *fork.Design.PreviousVersionID)
	assert.Len(t, fork.QuestTypes, 2)
	assert.Len(t, fork.RecognitionTiers, 2)
}

func TestForkActive_NoActiveDesign(t *testing.T) {
	f := newDraftFixture(t)

	_, err := f.svc.ForkActive(context.Background(), f.keeper())
	assert.True(t, IsNoActiveConfig(err))
}

func TestGetDraft_CrossCommunityLooksNotFound(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	outsider := Actor{ID: mustUUID(), CommunityID: mustUUID(), Tier: models.TierKeeper}
	_, err := f.svc.GetDraft(context.Background(), view.Design.ID, outsider)
	assert.True(t, IsNotFoundError(err))
}

func TestUpdateDraft_OnlyOwnerMayEdit(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	stranger := Actor{ID: mustUUID(), CommunityID: f.community, Tier: models.TierKeeper}
	name := "Renamed"
	_, err := f.svc.UpdateDraft(context.Background(), &UpdateDraftRequest{
		DesignID: view.Design.ID,
		Name:     &name,
		Actor:    stranger,
	})
	assert.True(t, IsNotOwnerError(err))

	updated, err := f.svc.UpdateDraft(context.Background(), &UpdateDraftRequest{
		DesignID: view.Design.ID,
		Name:     &name,
		Actor:    owner,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestSubmittedDraftIsLockedForEveryone(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	_, err := f.svc.SubmitForGovernance(context.Background(), view.Design.ID, owner)
	require.NoError(t, err)

	// Even the creator cannot edit a submitted draft
	name := "Too late"
	_, err = f.svc.UpdateDraft(context.Background(), &UpdateDraftRequest{
		DesignID: view.Design.ID,
		Name:     &name,
		Actor:    owner,
	})
	assert.True(t, IsDraftLockedError(err))

	_, err = f.svc.AddQuestType(context.Background(), view.Design.ID, owner, &QuestTypeInput{
		Slug: "late-quest", Label: "Late", ValidationMethod: "self_report",
		RecognitionType: "points", MaxPartySize: 1,
	})
	assert.True(t, IsDraftLockedError(err))

	// Resubmitting is also blocked by the lock
	_, err = f.svc.SubmitForGovernance(context.Background(), view.Design.ID, owner)
	assert.True(t, IsDraftLockedError(err))
}

func TestSubmitForGovernance_CreatesLinkedProposal(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	result, err := f.svc.SubmitForGovernance(context.Background(), view.Design.ID, owner)
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStatusDeliberation, result.Proposal.Status)
	assert.Equal(t, models.VoteTypeQuadratic, result.Proposal.VoteType)
	assert.Equal(t, models.ProposalCategoryGameDesign, result.Proposal.Category)
	assert.Equal(t, 10, result.Proposal.Quorum)
	require.NotNil(t, result.Proposal.DeliberationEndsAt)

	stored, err := f.designs.GetByID(context.Background(), view.Design.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SubmittedProposalID)
	assert.Equal(t, result.Proposal.ID, *stored.SubmittedProposalID)
}

func TestSubmitForGovernance_RequiresKeeperStanding(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	lowTier := Actor{ID: owner.ID, CommunityID: f.community, Tier: models.TierNeighbor}
	_, err := f.svc.SubmitForGovernance(context.Background(), view.Design.ID, lowTier)
	assert.True(t, IsForbiddenError(err))
}

func TestSubmitForGovernance_GuardrailViolationBlocks(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	// Strip every quest type so the design fails the minimum
	for _, qt := range view.QuestTypes {
		require.NoError(t, f.svc.RemoveQuestType(context.Background(),
			view.Design.ID, owner, qt.Slug))
	}

	_, err := f.svc.SubmitForGovernance(context.Background(), view.Design.ID, owner)
	assert.True(t, IsValidationError(err))
}

func TestAddQuestType_EnforcesLimitAndSlugUniqueness(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	_, err := f.svc.AddQuestType(context.Background(), view.Design.ID, owner, &QuestTypeInput{
		Slug: "helping-hand", Label: "Duplicate", ValidationMethod: "self_report",
		RecognitionType: "points", MaxPartySize: 1,
	})
	assert.True(t, IsValidationError(err))

	// Fill up to the cap, then one more fails
	for i := len(view.QuestTypes); i < models.MaxQuestTypes; i++ {
		_, err := f.svc.AddQuestType(context.Background(), view.Design.ID, owner, &QuestTypeInput{
			Slug: uuid.Must(uuid.NewV4()).String()[:8], Label: "Filler",
			ValidationMethod: "self_report", RecognitionType: "points", MaxPartySize: 1,
		})
		require.NoError(t, err)
	}
	_, err = f.svc.AddQuestType(context.Background(), view.Design.ID, owner, &QuestTypeInput{
		Slug: "one-too-many", Label: "Overflow", ValidationMethod: "self_report",
		RecognitionType: "points", MaxPartySize: 1,
	})
	assert.True(t, IsValidationError(err))
}

func TestRemoveRecognitionTier_KeepsMinimum(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	// Template seeds exactly the minimum, so any removal is blocked
	err := f.svc.RemoveRecognitionTier(context.Background(), view.Design.ID, owner, "Visitor")
	assert.True(t, IsValidationError(err))
}

func TestReplaceRecognitionSources_RejectsDuplicates(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()
	view := f.newDraft(t, owner)

	_, err := f.svc.ReplaceRecognitionSources(context.Background(), view.Design.ID, owner,
		[]RecognitionSourceInput{
			{SourceType: "quest_completion", Amount: 1},
			{SourceType: "quest_completion", Amount: 2},
		})
	assert.True(t, IsValidationError(err))

	sources, err := f.svc.ReplaceRecognitionSources(context.Background(), view.Design.ID, owner,
		[]RecognitionSourceInput{
			{SourceType: "quest_completion", Amount: 1},
			{SourceType: "witness_confirmation", Amount: 0.5},
		})
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestDiffAgainstActive_ReportsDraftChanges(t *testing.T) {
	f := newDraftFixture(t)
	owner := f.keeper()

	original := f.newDraft(t, owner)
	require.NoError(t, f.designs.Activate(context.Background(),
		original.Design.ID, f.community, mustUUID()))

	fork, err := f.svc.ForkActive(context.Background(), owner)
	require.NoError(t, err)

	_, err = f.svc.AddQuestType(context.Background(), fork.Design.ID, owner, &QuestTypeInput{
		Slug: "tutoring", Label: "Tutoring", ValidationMethod: "single_witness",
		RecognitionType: "points", BaseRecognition: 20, MaxPartySize: 2,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveQuestType(context.Background(),
		fork.Design.ID, owner, "community-project"))

	diff, err := f.svc.DiffAgainstActive(context.Background(), fork.Design.ID, owner)
	require.NoError(t, err)

	assert.Equal(t, []string{"tutoring"}, diff.QuestTypes.Added)
	assert.Equal(t, []string{"community-project"}, diff.QuestTypes.Removed)
	assert.Equal(t, []string{"helping-hand"}, diff.QuestTypes.Unchanged)
	assert.Empty(t, diff.SkillDomains.Added)
}
