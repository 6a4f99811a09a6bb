package services

import (
	"context"
	"testing"
	"time"

	"civicforge/internal/config"
	"civicforge/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy() config.GovernanceConfig {
	return config.GovernanceConfig{
		DeliberationDays: 7,
		VotingDays:       7,
		DefaultQuorum:    10,
		MinProposerTier:  models.TierKeeper,
		MinVoterTier:     models.TierNeighbor,
		MaxLifetime:      90 * 24 * time.Hour,
	}
}

type governanceFixture struct {
	svc       *GovernanceService
	proposals *fakeProposalRepo
	votes     *fakeVoteRepo
	designs   *fakeDesignRepo
	clock     *fakeClock
	community uuid.UUID
}

func newGovernanceFixture(t *testing.T) *governanceFixture {
	t.Helper()
	proposals := newFakeProposalRepo()
	votes := newFakeVoteRepo(proposals)
	designs := newFakeDesignRepo()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	proposals.now = clock.Now
	svc := NewGovernanceService(proposals, votes, designs, testPolicy(), clock, zap.NewNop())
	return &governanceFixture{
		svc:       svc,
		proposals: proposals,
		votes:     votes,
		designs:   designs,
		clock:     clock,
		community: mustUUID(),
	}
}

func (f *governanceFixture) keeper() Actor {
	return Actor{ID: mustUUID(), CommunityID: f.community, Tier: models.TierKeeper}
}

func (f *governanceFixture) neighbor() Actor {
	return Actor{ID: mustUUID(), CommunityID: f.community, Tier: models.TierNeighbor}
}

// votingProposal creates a proposal already in its voting window
func (f *governanceFixture) votingProposal(t *testing.T, voteType string, quorum int) *models.GovernanceProposal {
	t.Helper()
	ends := f.clock.Now().Add(7 * 24 * time.Hour)
	p := &models.GovernanceProposal{
		CommunityID:  f.community,
		AuthorID:     mustUUID(),
		Title:        "Adopt the tutoring quest",
		Description:  "Adds tutoring as a recognized quest type",
		Category:     models.ProposalCategoryRuleChange,
		VoteType:     voteType,
		Status:       models.ProposalStatusVoting,
		Quorum:       quorum,
		VotingEndsAt: &ends,
	}
	require.NoError(t, f.proposals.Create(context.Background(), p))
	return p
}

// ===============================
// QUADRATIC WEIGHTING
// ===============================

func TestQuadraticWeight_PerfectSquares(t *testing.T) {
	cases := map[int]int{1: 1, 4: 2, 9: 3, 16: 4, 25: 5, 100: 10}
	for credits, want := range cases {
		assert.Equal(t, want, QuadraticWeight(credits), "credits=%d", credits)
	}
}

func TestQuadraticWeight_RoundsToNearest(t *testing.T) {
	assert.Equal(t, 1, QuadraticWeight(2))  // 1.41
	assert.Equal(t, 2, QuadraticWeight(3))  // 1.73
	assert.Equal(t, 7, QuadraticWeight(50)) // 7.07
	assert.Equal(t, 9, QuadraticWeight(80)) // 8.94
}

func TestQuadraticWeight_Monotonic(t *testing.T) {
	prev := 0
	for credits := 1; credits <= 100; credits++ {
		w := QuadraticWeight(credits)
		assert.GreaterOrEqual(t, w, prev, "credits=%d", credits)
		assert.GreaterOrEqual(t, w, 1)
		assert.LessOrEqual(t, w, 10)
		prev = w
	}
}

// ===============================
// VOTING
// ===============================

func TestCastVote_QuadraticWeightAppliedToTally(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 10)

	vote, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID:   p.ID,
		InFavor:      true,
		CreditsSpent: 25,
		Actor:        f.neighbor(),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, vote.Weight)

	stored, err := f.proposals.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.VotesFor)
	assert.Equal(t, 0, stored.VotesAgainst)
}

func TestCastVote_ApprovalAlwaysWeighsOne(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeApproval, 2)

	vote, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID,
		InFavor:    false,
		Actor:      f.neighbor(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, vote.Weight)
	assert.Equal(t, 0, vote.CreditsSpent)
}

func TestCastVote_RejectsCreditsOutOfRange(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 10)

	for _, credits := range []int{0, 101} {
		_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
			ProposalID:   p.ID,
			InFavor:      true,
			CreditsSpent: credits,
			Actor:        f.neighbor(),
		})
		assert.True(t, IsValidationError(err), "credits=%d", credits)
	}
}

func TestCastVote_SecondBallotIsAlreadyVoted(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 10)
	voter := f.neighbor()

	_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID, InFavor: true, CreditsSpent: 9, Actor: voter,
	})
	require.NoError(t, err)

	_, err = f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID, InFavor: false, CreditsSpent: 4, Actor: voter,
	})
	assert.True(t, IsAlreadyVoted(err))

	// Tally unchanged by the rejected second ballot
	stored, err := f.proposals.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.VotesFor)
	assert.Equal(t, 0, stored.VotesAgainst)
}

func TestCastVote_OutsideVotingStateIsInvalidTransition(t *testing.T) {
	f := newGovernanceFixture(t)
	p := &models.GovernanceProposal{
		CommunityID: f.community,
		AuthorID:    mustUUID(),
		Title:       "Still deliberating",
		Description: "Not open for votes yet at all",
		Category:    models.ProposalCategoryGeneral,
		VoteType:    models.VoteTypeQuadratic,
		Status:      models.ProposalStatusDeliberation,
		Quorum:      10,
	}
	require.NoError(t, f.proposals.Create(context.Background(), p))

	_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID, InFavor: true, CreditsSpent: 1, Actor: f.neighbor(),
	})
	assert.True(t, IsInvalidTransition(err))
}

func TestCastVote_ClosedWindowIsInvalidTransition(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 10)

	f.clock.Advance(8 * 24 * time.Hour)

	_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID, InFavor: true, CreditsSpent: 1, Actor: f.neighbor(),
	})
	assert.True(t, IsInvalidTransition(err))
}

func TestCastVote_RequiresNeighborStanding(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 10)

	visitor := Actor{ID: mustUUID(), CommunityID: f.community, Tier: models.TierVisitor}
	_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID, InFavor: true, CreditsSpent: 1, Actor: visitor,
	})
	assert.True(t, IsForbiddenError(err))
}

func TestCastVote_CrossCommunityLooksNotFound(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 10)

	outsider := Actor{ID: mustUUID(), CommunityID: mustUUID(), Tier: models.TierKeeper}
	_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
		ProposalID: p.ID, InFavor: true, CreditsSpent: 1, Actor: outsider,
	})
	assert.True(t, IsNotFoundError(err))
}

// ===============================
// PROPOSAL LIFECYCLE
// ===============================

func TestCreateProposal_RequiresKeeperStanding(t *testing.T) {
	f := newGovernanceFixture(t)

	_, err := f.svc.CreateProposal(context.Background(), &CreateProposalRequest{
		Title:       "Lower the quest cooldowns",
		Description: "Cooldowns are too long for small neighborhoods",
		Category:    models.ProposalCategoryRuleChange,
		VoteType:    models.VoteTypeApproval,
		Actor:       f.neighbor(),
	})
	assert.True(t, IsForbiddenError(err))
}

func TestSubmit_MovesDraftIntoDeliberation(t *testing.T) {
	f := newGovernanceFixture(t)
	author := f.keeper()

	p, err := f.svc.CreateProposal(context.Background(), &CreateProposalRequest{
		Title:       "Lower the quest cooldowns",
		Description: "Cooldowns are too long for small neighborhoods",
		Category:    models.ProposalCategoryRuleChange,
		VoteType:    models.VoteTypeApproval,
		Actor:       author,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusDraft, p.Status)

	submitted, err := f.svc.Submit(context.Background(), p.ID, author)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusDeliberation, submitted.Status)
	require.NotNil(t, submitted.DeliberationEndsAt)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), *submitted.DeliberationEndsAt)

	// A second submit is an invalid transition
	_, err = f.svc.Submit(context.Background(), p.ID, author)
	assert.True(t, IsInvalidTransition(err))
}

func TestAdvanceToVoting_BeforeDeadlineFails(t *testing.T) {
	f := newGovernanceFixture(t)
	author := f.keeper()

	p, err := f.svc.CreateProposal(context.Background(), &CreateProposalRequest{
		Title:       "Lower the quest cooldowns",
		Description: "Cooldowns are too long for small neighborhoods",
		Category:    models.ProposalCategoryRuleChange,
		VoteType:    models.VoteTypeApproval,
		Actor:       author,
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), p.ID, author)
	require.NoError(t, err)

	_, err = f.svc.AdvanceToVoting(context.Background(), p.ID, author)
	assert.True(t, IsInvalidTransition(err))

	f.clock.Advance(7*24*time.Hour + time.Minute)
	advanced, err := f.svc.AdvanceToVoting(context.Background(), p.ID, author)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusVoting, advanced.Status)
	require.NotNil(t, advanced.VotingEndsAt)
}

// ===============================
// OUTCOME EVALUATION
// ===============================

func TestEvaluateOutcome_QuorumGate(t *testing.T) {
	ends := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	after := ends.Add(time.Hour)

	// Unanimous support below quorum still fails
	p := &models.GovernanceProposal{
		Status: models.ProposalStatusVoting, VotesFor: 3, VotesAgainst: 0,
		Quorum: 5, VotingEndsAt: &ends,
	}
	assert.Equal(t, models.ProposalStatusRejected, EvaluateOutcome(p, after))

	// Quorum met and majority in favor passes
	p.VotesFor = 6
	p.VotesAgainst = 2
	assert.Equal(t, models.ProposalStatusPassed, EvaluateOutcome(p, after))

	// Quorum met but tied fails
	p.VotesFor = 3
	p.VotesAgainst = 3
	assert.Equal(t, models.ProposalStatusRejected, EvaluateOutcome(p, after))
}

func TestEvaluateOutcome_OpenWindowOrTerminalIsNoop(t *testing.T) {
	ends := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	before := ends.Add(-time.Hour)

	open := &models.GovernanceProposal{
		Status: models.ProposalStatusVoting, VotesFor: 20, Quorum: 5,
		VotingEndsAt: &ends,
	}
	assert.Equal(t, "", EvaluateOutcome(open, before))

	passed := &models.GovernanceProposal{Status: models.ProposalStatusPassed}
	assert.Equal(t, "", EvaluateOutcome(passed, ends.Add(time.Hour)))
}

// ===============================
// TICK
// ===============================

func TestTick_AdvancesDeliberationAndClosesVoting(t *testing.T) {
	f := newGovernanceFixture(t)
	author := f.keeper()

	p, err := f.svc.CreateProposal(context.Background(), &CreateProposalRequest{
		Title:       "Add the tutoring quest",
		Description: "Tutoring deserves recognition too",
		Category:    models.ProposalCategoryRuleChange,
		VoteType:    models.VoteTypeQuadratic,
		Actor:       author,
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), p.ID, author)
	require.NoError(t, err)

	// Deliberation deadline passes: tick opens voting
	f.clock.Advance(7*24*time.Hour + time.Minute)
	report, err := f.svc.Tick(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.MovedToVoting)

	// Quorum 10 needs combined weight >= 10 with a majority in favor
	for i := 0; i < 4; i++ {
		_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
			ProposalID: p.ID, InFavor: true, CreditsSpent: 9, Actor: f.neighbor(),
		})
		require.NoError(t, err)
	}

	// Voting deadline passes: tick evaluates the outcome
	f.clock.Advance(7*24*time.Hour + time.Minute)
	report, err = f.svc.Tick(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Passed)

	final, err := f.proposals.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPassed, final.Status)
}

func TestTick_Idempotent(t *testing.T) {
	f := newGovernanceFixture(t)
	p := f.votingProposal(t, models.VoteTypeQuadratic, 2)
	for i := 0; i < 3; i++ {
		_, err := f.svc.CastVote(context.Background(), &CastVoteRequest{
			ProposalID: p.ID, InFavor: true, CreditsSpent: 4, Actor: f.neighbor(),
		})
		require.NoError(t, err)
	}

	f.clock.Advance(8 * 24 * time.Hour)
	first, err := f.svc.Tick(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Passed)

	second, err := f.svc.Tick(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, second.Passed)
	assert.Zero(t, second.Rejected)
	assert.Zero(t, second.Errors)
}

func TestTick_ExpiresStaleProposals(t *testing.T) {
	f := newGovernanceFixture(t)
	author := f.keeper()

	p, err := f.svc.CreateProposal(context.Background(), &CreateProposalRequest{
		Title:       "Forgotten proposal",
		Description: "Never submitted, should eventually expire",
		Category:    models.ProposalCategoryGeneral,
		VoteType:    models.VoteTypeApproval,
		Actor:       author,
	})
	require.NoError(t, err)

	f.clock.Advance(91 * 24 * time.Hour)
	report, err := f.svc.Tick(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	stored, err := f.proposals.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExpired, stored.Status)
}
