package governance

import (
	"encoding/json"
	"net/http"

	"civicforge/internal/contextutils"
	"civicforge/internal/response"
	"civicforge/internal/services"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// Controller handles governance proposal endpoints
type Controller struct {
	governance *services.GovernanceService
	activation *services.ActivationService
	respond    *response.Builder
	logger     *zap.Logger
}

// NewController creates a governance controller
func NewController(governance *services.GovernanceService, activation *services.ActivationService, respond *response.Builder, logger *zap.Logger) *Controller {
	return &Controller{
		governance: governance,
		activation: activation,
		respond:    respond,
		logger:     logger,
	}
}

// RegisterRoutes wires the governance endpoints onto the mux
func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/governance/proposals", c.CreateProposal)
	mux.HandleFunc("GET /api/v1/governance/proposals", c.ListProposals)
	mux.HandleFunc("GET /api/v1/governance/proposals/{id}", c.GetProposal)
	mux.HandleFunc("POST /api/v1/governance/proposals/{id}/submit", c.Submit)
	mux.HandleFunc("POST /api/v1/governance/proposals/{id}/advance", c.AdvanceToVoting)
	mux.HandleFunc("POST /api/v1/governance/proposals/{id}/votes", c.CastVote)
	mux.HandleFunc("POST /api/v1/governance/proposals/{id}/activate", c.Activate)
}

type createProposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	VoteType    string `json:"vote_type"`
}

// CreateProposal opens a standalone proposal
func (c *Controller) CreateProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return
	}

	var body createProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	proposal, err := c.governance.CreateProposal(r.Context(), &services.CreateProposalRequest{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		VoteType:    body.VoteType,
		Actor:       actor,
	})
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, proposal)
}

// ListProposals lists the community's proposals; ?status= filters
func (c *Controller) ListProposals(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return
	}

	proposals, err := c.governance.ListProposals(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, proposals)
}

// GetProposal returns one proposal
func (c *Controller) GetProposal(w http.ResponseWriter, r *http.Request) {
	actor, proposalID, ok := c.actorAndProposal(w, r)
	if !ok {
		return
	}

	proposal, err := c.governance.GetProposal(r.Context(), proposalID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, proposal)
}

// Submit moves a draft proposal into deliberation
func (c *Controller) Submit(w http.ResponseWriter, r *http.Request) {
	actor, proposalID, ok := c.actorAndProposal(w, r)
	if !ok {
		return
	}

	proposal, err := c.governance.Submit(r.Context(), proposalID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, proposal)
}

// AdvanceToVoting opens voting once deliberation has ended
func (c *Controller) AdvanceToVoting(w http.ResponseWriter, r *http.Request) {
	actor, proposalID, ok := c.actorAndProposal(w, r)
	if !ok {
		return
	}

	proposal, err := c.governance.AdvanceToVoting(r.Context(), proposalID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, proposal)
}

type castVoteRequest struct {
	InFavor      bool `json:"in_favor"`
	CreditsSpent int  `json:"credits_spent"`
}

// CastVote records one ballot on a voting proposal
func (c *Controller) CastVote(w http.ResponseWriter, r *http.Request) {
	actor, proposalID, ok := c.actorAndProposal(w, r)
	if !ok {
		return
	}

	var body castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	vote, err := c.governance.CastVote(r.Context(), &services.CastVoteRequest{
		ProposalID:   proposalID,
		InFavor:      body.InFavor,
		CreditsSpent: body.CreditsSpent,
		Actor:        actor,
	})
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, vote)
}

// Activate promotes a passed proposal's design to active
func (c *Controller) Activate(w http.ResponseWriter, r *http.Request) {
	actor, proposalID, ok := c.actorAndProposal(w, r)
	if !ok {
		return
	}

	design, err := c.activation.Activate(r.Context(), proposalID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, design)
}

func (c *Controller) actorAndProposal(w http.ResponseWriter, r *http.Request) (services.Actor, uuid.UUID, bool) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return services.Actor{}, uuid.Nil, false
	}
	proposalID, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		c.respond.BadRequest(w, r, "proposal id must be a valid UUID")
		return services.Actor{}, uuid.Nil, false
	}
	return actor, proposalID, true
}
