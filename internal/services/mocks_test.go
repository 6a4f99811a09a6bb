package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"civicforge/internal/models"
	"civicforge/internal/repositories"

	"github.com/gofrs/uuid"
)

// fakeClock returns a settable time for deadline tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mustUUID() uuid.UUID {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return id
}

// ===============================
// FAKE DESIGN REPOSITORY
// ===============================

type fakeDesignRepo struct {
	mu       sync.Mutex
	designs  map[uuid.UUID]*models.GameDesign
	quests   map[uuid.UUID][]models.QuestType
	domains  map[uuid.UUID][]models.SkillDomain
	tiers    map[uuid.UUID][]models.RecognitionTier
	sources  map[uuid.UUID][]models.RecognitionSource
	failNext error
}

func newFakeDesignRepo() *fakeDesignRepo {
	return &fakeDesignRepo{
		designs: make(map[uuid.UUID]*models.GameDesign),
		quests:  make(map[uuid.UUID][]models.QuestType),
		domains: make(map[uuid.UUID][]models.SkillDomain),
		tiers:   make(map[uuid.UUID][]models.RecognitionTier),
		sources: make(map[uuid.UUID][]models.RecognitionSource),
	}
}

func (r *fakeDesignRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func copyDesign(d *models.GameDesign) *models.GameDesign {
	dup := *d
	return &dup
}

func (r *fakeDesignRepo) Create(_ context.Context, design *models.GameDesign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	design.ID = mustUUID()
	design.CreatedAt = time.Now()
	design.UpdatedAt = design.CreatedAt
	r.designs[design.ID] = copyDesign(design)
	return nil
}

func (r *fakeDesignRepo) CreateWithChildren(ctx context.Context, design *models.GameDesign, cfg *models.TemplateConfig) error {
	if err := r.Create(ctx, design); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, qt := range cfg.QuestTypes {
		qt.ID = mustUUID()
		qt.GameDesignID = design.ID
		r.quests[design.ID] = append(r.quests[design.ID], qt)
	}
	for _, sd := range cfg.SkillDomains {
		sd.ID = mustUUID()
		sd.GameDesignID = design.ID
		r.domains[design.ID] = append(r.domains[design.ID], sd)
	}
	for _, rt := range cfg.RecognitionTiers {
		rt.ID = mustUUID()
		rt.GameDesignID = design.ID
		r.tiers[design.ID] = append(r.tiers[design.ID], rt)
	}
	for _, rs := range cfg.RecognitionSources {
		rs.ID = mustUUID()
		rs.GameDesignID = design.ID
		r.sources[design.ID] = append(r.sources[design.ID], rs)
	}
	return nil
}

func (r *fakeDesignRepo) GetByID(_ context.Context, id uuid.UUID) (*models.GameDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.designs[id]; ok {
		return copyDesign(d), nil
	}
	return nil, nil
}

func (r *fakeDesignRepo) GetActiveByCommunity(_ context.Context, communityID uuid.UUID) (*models.GameDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.designs {
		if d.CommunityID == communityID && d.Status == models.DesignStatusActive {
			return copyDesign(d), nil
		}
	}
	return nil, nil
}

func (r *fakeDesignRepo) GetBySubmittedProposal(_ context.Context, proposalID uuid.UUID) (*models.GameDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.designs {
		if d.SubmittedProposalID != nil && *d.SubmittedProposalID == proposalID {
			return copyDesign(d), nil
		}
	}
	return nil, nil
}

func (r *fakeDesignRepo) ListByCommunity(_ context.Context, communityID uuid.UUID) ([]*models.GameDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GameDesign
	for _, d := range r.designs {
		if d.CommunityID == communityID {
			out = append(out, copyDesign(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *fakeDesignRepo) UpdateHeader(_ context.Context, design *models.GameDesign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.designs[design.ID]
	if !ok {
		return repositories.ErrStaleTransition
	}
	stored.Name = design.Name
	stored.Description = design.Description
	stored.ValueStatement = design.ValueStatement
	stored.DesignRationale = design.DesignRationale
	stored.SunsetAt = design.SunsetAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeDesignRepo) Lock(_ context.Context, designID, proposalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.designs[designID]
	if !ok || d.Status != models.DesignStatusDraft || d.SubmittedProposalID != nil {
		return repositories.ErrStaleTransition
	}
	pid := proposalID
	d.SubmittedProposalID = &pid
	return nil
}

func (r *fakeDesignRepo) ListQuestTypes(_ context.Context, designID uuid.UUID) ([]models.QuestType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.QuestType(nil), r.quests[designID]...), nil
}

func (r *fakeDesignRepo) AddQuestType(_ context.Context, qt *models.QuestType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.quests[qt.GameDesignID] {
		if existing.Slug == qt.Slug {
			return errUniqueViolation()
		}
	}
	qt.ID = mustUUID()
	r.quests[qt.GameDesignID] = append(r.quests[qt.GameDesignID], *qt)
	return nil
}

func (r *fakeDesignRepo) UpdateQuestType(_ context.Context, qt *models.QuestType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.quests[qt.GameDesignID]
	for i := range list {
		if list[i].Slug == qt.Slug {
			qt.ID = list[i].ID
			list[i] = *qt
			return nil
		}
	}
	return repositories.ErrStaleTransition
}

func (r *fakeDesignRepo) DeleteQuestType(_ context.Context, designID uuid.UUID, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.quests[designID]
	for i := range list {
		if list[i].Slug == slug {
			r.quests[designID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrStaleTransition
}

func (r *fakeDesignRepo) ListSkillDomains(_ context.Context, designID uuid.UUID) ([]models.SkillDomain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SkillDomain(nil), r.domains[designID]...), nil
}

func (r *fakeDesignRepo) AddSkillDomain(_ context.Context, sd *models.SkillDomain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.domains[sd.GameDesignID] {
		if existing.Slug == sd.Slug {
			return errUniqueViolation()
		}
	}
	sd.ID = mustUUID()
	r.domains[sd.GameDesignID] = append(r.domains[sd.GameDesignID], *sd)
	return nil
}

func (r *fakeDesignRepo) UpdateSkillDomain(_ context.Context, sd *models.SkillDomain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.domains[sd.GameDesignID]
	for i := range list {
		if list[i].Slug == sd.Slug {
			sd.ID = list[i].ID
			list[i] = *sd
			return nil
		}
	}
	return repositories.ErrStaleTransition
}

func (r *fakeDesignRepo) DeleteSkillDomain(_ context.Context, designID uuid.UUID, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.domains[designID]
	for i := range list {
		if list[i].Slug == slug {
			r.domains[designID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrStaleTransition
}

func (r *fakeDesignRepo) ListRecognitionTiers(_ context.Context, designID uuid.UUID) ([]models.RecognitionTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RecognitionTier(nil), r.tiers[designID]...), nil
}

func (r *fakeDesignRepo) AddRecognitionTier(_ context.Context, rt *models.RecognitionTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tiers[rt.GameDesignID] {
		if existing.Name == rt.Name || existing.TierNumber == rt.TierNumber {
			return errUniqueViolation()
		}
	}
	rt.ID = mustUUID()
	r.tiers[rt.GameDesignID] = append(r.tiers[rt.GameDesignID], *rt)
	return nil
}

func (r *fakeDesignRepo) UpdateRecognitionTier(_ context.Context, rt *models.RecognitionTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.tiers[rt.GameDesignID]
	for i := range list {
		if list[i].Name == rt.Name {
			rt.ID = list[i].ID
			list[i] = *rt
			return nil
		}
	}
	return repositories.ErrStaleTransition
}

func (r *fakeDesignRepo) DeleteRecognitionTier(_ context.Context, designID uuid.UUID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.tiers[designID]
	for i := range list {
		if list[i].Name == name {
			r.tiers[designID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrStaleTransition
}

func (r *fakeDesignRepo) ListRecognitionSources(_ context.Context, designID uuid.UUID) ([]models.RecognitionSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RecognitionSource(nil), r.sources[designID]...), nil
}

func (r *fakeDesignRepo) ReplaceRecognitionSources(_ context.Context, designID uuid.UUID, sources []models.RecognitionSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	replacement := make([]models.RecognitionSource, len(sources))
	for i, rs := range sources {
		rs.ID = mustUUID()
		rs.GameDesignID = designID
		replacement[i] = rs
	}
	r.sources[designID] = replacement
	return nil
}

func (r *fakeDesignRepo) Activate(_ context.Context, designID, communityID, proposalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.designs[designID]
	if !ok || target.CommunityID != communityID || target.Status != models.DesignStatusDraft {
		return repositories.ErrConcurrentActivation
	}
	for _, d := range r.designs {
		if d.CommunityID == communityID && d.Status == models.DesignStatusActive {
			d.Status = models.DesignStatusArchived
		}
	}
	pid := proposalID
	target.Status = models.DesignStatusActive
	target.ActivatedByProposalID = &pid
	return nil
}

// errUniqueViolation fabricates a pq unique violation for the fakes
func errUniqueViolation() error {
	return &uniqueViolationError{}
}

type uniqueViolationError struct{}

func (e *uniqueViolationError) Error() string { return "duplicate key value violates unique constraint" }

// ===============================
// FAKE PROPOSAL REPOSITORY
// ===============================

type fakeProposalRepo struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*models.GovernanceProposal
	now       func() time.Time
}

func newFakeProposalRepo() *fakeProposalRepo {
	return &fakeProposalRepo{
		proposals: make(map[uuid.UUID]*models.GovernanceProposal),
		now:       time.Now,
	}
}

func copyProposal(p *models.GovernanceProposal) *models.GovernanceProposal {
	dup := *p
	return &dup
}

func (r *fakeProposalRepo) Create(_ context.Context, proposal *models.GovernanceProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	proposal.ID = mustUUID()
	proposal.CreatedAt = r.now()
	proposal.UpdatedAt = proposal.CreatedAt
	r.proposals[proposal.ID] = copyProposal(proposal)
	return nil
}

func (r *fakeProposalRepo) GetByID(_ context.Context, id uuid.UUID) (*models.GovernanceProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.proposals[id]; ok {
		return copyProposal(p), nil
	}
	return nil, nil
}

func (r *fakeProposalRepo) ListByCommunity(_ context.Context, communityID uuid.UUID, status string) ([]*models.GovernanceProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GovernanceProposal
	for _, p := range r.proposals {
		if p.CommunityID == communityID && (status == "" || p.Status == status) {
			out = append(out, copyProposal(p))
		}
	}
	return out, nil
}

func (r *fakeProposalRepo) MarkDeliberation(_ context.Context, id uuid.UUID, endsAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || p.Status != models.ProposalStatusDraft {
		return repositories.ErrStaleTransition
	}
	ends := endsAt
	p.Status = models.ProposalStatusDeliberation
	p.DeliberationEndsAt = &ends
	return nil
}

func (r *fakeProposalRepo) MarkVoting(_ context.Context, id uuid.UUID, endsAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || p.Status != models.ProposalStatusDeliberation {
		return repositories.ErrStaleTransition
	}
	ends := endsAt
	p.Status = models.ProposalStatusVoting
	p.VotingEndsAt = &ends
	return nil
}

func (r *fakeProposalRepo) MarkOutcome(_ context.Context, id uuid.UUID, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || p.Status != models.ProposalStatusVoting {
		return repositories.ErrStaleTransition
	}
	p.Status = outcome
	return nil
}

func (r *fakeProposalRepo) MarkExpired(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return repositories.ErrStaleTransition
	}
	if p.Status != models.ProposalStatusDraft && p.Status != models.ProposalStatusDeliberation {
		return repositories.ErrStaleTransition
	}
	p.Status = models.ProposalStatusExpired
	return nil
}

func (r *fakeProposalRepo) ListDueForVoting(_ context.Context, now time.Time) ([]*models.GovernanceProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GovernanceProposal
	for _, p := range r.proposals {
		if p.Status == models.ProposalStatusDeliberation &&
			p.DeliberationEndsAt != nil && !p.DeliberationEndsAt.After(now) {
			out = append(out, copyProposal(p))
		}
	}
	return out, nil
}

func (r *fakeProposalRepo) ListDueForOutcome(_ context.Context, now time.Time) ([]*models.GovernanceProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GovernanceProposal
	for _, p := range r.proposals {
		if p.Status == models.ProposalStatusVoting &&
			p.VotingEndsAt != nil && !p.VotingEndsAt.After(now) {
			out = append(out, copyProposal(p))
		}
	}
	return out, nil
}

func (r *fakeProposalRepo) ListStale(_ context.Context, cutoff time.Time) ([]*models.GovernanceProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GovernanceProposal
	for _, p := range r.proposals {
		if (p.Status == models.ProposalStatusDraft || p.Status == models.ProposalStatusDeliberation) &&
			!p.CreatedAt.After(cutoff) {
			out = append(out, copyProposal(p))
		}
	}
	return out, nil
}

// ===============================
// FAKE VOTE REPOSITORY
// ===============================

type fakeVoteRepo struct {
	mu        sync.Mutex
	votes     map[uuid.UUID][]*models.GovernanceVote
	proposals *fakeProposalRepo
}

func newFakeVoteRepo(proposals *fakeProposalRepo) *fakeVoteRepo {
	return &fakeVoteRepo{
		votes:     make(map[uuid.UUID][]*models.GovernanceVote),
		proposals: proposals,
	}
}

func (r *fakeVoteRepo) CastVote(_ context.Context, vote *models.GovernanceVote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.votes[vote.ProposalID] {
		if existing.VoterID == vote.VoterID {
			return repositories.ErrDuplicateVote
		}
	}

	r.proposals.mu.Lock()
	defer r.proposals.mu.Unlock()
	p, ok := r.proposals.proposals[vote.ProposalID]
	if !ok || p.Status != models.ProposalStatusVoting {
		return repositories.ErrStaleTransition
	}
	if vote.InFavor {
		p.VotesFor += vote.Weight
	} else {
		p.VotesAgainst += vote.Weight
	}

	vote.ID = mustUUID()
	vote.CreatedAt = time.Now()
	dup := *vote
	r.votes[vote.ProposalID] = append(r.votes[vote.ProposalID], &dup)
	return nil
}

func (r *fakeVoteRepo) ListByProposal(_ context.Context, proposalID uuid.UUID) ([]*models.GovernanceVote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.GovernanceVote(nil), r.votes[proposalID]...), nil
}

func (r *fakeVoteRepo) RecountTallies(_ context.Context, proposalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proposals.mu.Lock()
	defer r.proposals.mu.Unlock()
	p, ok := r.proposals.proposals[proposalID]
	if !ok {
		return nil
	}
	p.VotesFor = 0
	p.VotesAgainst = 0
	for _, v := range r.votes[proposalID] {
		if v.InFavor {
			p.VotesFor += v.Weight
		} else {
			p.VotesAgainst += v.Weight
		}
	}
	return nil
}

// ===============================
// FAKE TEMPLATE REPOSITORY
// ===============================

type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*models.GameTemplate
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[uuid.UUID]*models.GameTemplate)}
}

func (r *fakeTemplateRepo) add(t *models.GameTemplate) *models.GameTemplate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = mustUUID()
	}
	r.templates[t.ID] = t
	return t
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*models.GameTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.templates[id]; ok {
		return t, nil
	}
	return nil, nil
}

func (r *fakeTemplateRepo) GetBySlug(_ context.Context, slug string) (*models.GameTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.templates {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTemplateRepo) List(_ context.Context) ([]*models.GameTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GameTemplate
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out, nil
}
