package designs

import (
	"encoding/json"
	"net/http"
	"time"

	"civicforge/internal/contextutils"
	"civicforge/internal/response"
	"civicforge/internal/services"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// Controller handles design draft endpoints
type Controller struct {
	drafts  *services.DraftService
	respond *response.Builder
	logger  *zap.Logger
}

// NewController creates a designs controller
func NewController(drafts *services.DraftService, respond *response.Builder, logger *zap.Logger) *Controller {
	return &Controller{drafts: drafts, respond: respond, logger: logger}
}

// RegisterRoutes wires the design endpoints onto the mux
func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/designs/from-template", c.CreateFromTemplate)
	mux.HandleFunc("POST /api/v1/designs/fork", c.ForkActive)
	mux.HandleFunc("GET /api/v1/designs/{id}", c.GetDraft)
	mux.HandleFunc("PATCH /api/v1/designs/{id}", c.UpdateDraft)
	mux.HandleFunc("GET /api/v1/designs/{id}/diff", c.DiffAgainstActive)
	mux.HandleFunc("POST /api/v1/designs/{id}/submit", c.Submit)

	mux.HandleFunc("POST /api/v1/designs/{id}/quest-types", c.AddQuestType)
	mux.HandleFunc("PATCH /api/v1/designs/{id}/quest-types/{slug}", c.UpdateQuestType)
	mux.HandleFunc("DELETE /api/v1/designs/{id}/quest-types/{slug}", c.RemoveQuestType)

	mux.HandleFunc("POST /api/v1/designs/{id}/skill-domains", c.AddSkillDomain)
	mux.HandleFunc("PATCH /api/v1/designs/{id}/skill-domains/{slug}", c.UpdateSkillDomain)
	mux.HandleFunc("DELETE /api/v1/designs/{id}/skill-domains/{slug}", c.RemoveSkillDomain)

	mux.HandleFunc("POST /api/v1/designs/{id}/recognition-tiers", c.AddRecognitionTier)
	mux.HandleFunc("PATCH /api/v1/designs/{id}/recognition-tiers/{name}", c.UpdateRecognitionTier)
	mux.HandleFunc("DELETE /api/v1/designs/{id}/recognition-tiers/{name}", c.RemoveRecognitionTier)

	mux.HandleFunc("PUT /api/v1/designs/{id}/recognition-sources", c.ReplaceRecognitionSources)
}

type createFromTemplateRequest struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
}

// CreateFromTemplate seeds a new draft from a catalog template
func (c *Controller) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return
	}

	var body createFromTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}
	templateID, err := uuid.FromString(body.TemplateID)
	if err != nil {
		c.respond.BadRequest(w, r, "template_id must be a valid UUID")
		return
	}

	view, err := c.drafts.CreateFromTemplate(r.Context(), &services.CreateFromTemplateRequest{
		TemplateID: templateID,
		Name:       body.Name,
		Actor:      actor,
	})
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, view)
}

// ForkActive copies the active design into a new draft
func (c *Controller) ForkActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return
	}

	view, err := c.drafts.ForkActive(r.Context(), actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, view)
}

// GetDraft returns a design and its child collections
func (c *Controller) GetDraft(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	view, err := c.drafts.GetDraft(r.Context(), designID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, view)
}

type updateDraftRequest struct {
	Name            *string    `json:"name"`
	Description     *string    `json:"description"`
	ValueStatement  *string    `json:"value_statement"`
	DesignRationale *string    `json:"design_rationale"`
	SunsetAt        *time.Time `json:"sunset_at"`
}

// UpdateDraft mutates a draft's header fields
func (c *Controller) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var body updateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	design, err := c.drafts.UpdateDraft(r.Context(), &services.UpdateDraftRequest{
		DesignID:        designID,
		Name:            body.Name,
		Description:     body.Description,
		ValueStatement:  body.ValueStatement,
		DesignRationale: body.DesignRationale,
		SunsetAt:        body.SunsetAt,
		Actor:           actor,
	})
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, design)
}

// DiffAgainstActive returns the membership diff against the active config
func (c *Controller) DiffAgainstActive(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	diff, err := c.drafts.DiffAgainstActive(r.Context(), designID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, diff)
}

// Submit locks the draft and opens its governance proposal
func (c *Controller) Submit(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	result, err := c.drafts.SubmitForGovernance(r.Context(), designID, actor)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, result)
}

// ===============================
// QUEST TYPES
// ===============================

// AddQuestType appends a quest type to a draft
func (c *Controller) AddQuestType(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var input services.QuestTypeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	qt, err := c.drafts.AddQuestType(r.Context(), designID, actor, &input)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, qt)
}

// UpdateQuestType replaces a quest type's fields
func (c *Controller) UpdateQuestType(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var input services.QuestTypeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}
	input.Slug = r.PathValue("slug")

	qt, err := c.drafts.UpdateQuestType(r.Context(), designID, actor, &input)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, qt)
}

// RemoveQuestType deletes a quest type by slug
func (c *Controller) RemoveQuestType(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	if err := c.drafts.RemoveQuestType(r.Context(), designID, actor, r.PathValue("slug")); err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, nil)
}

// ===============================
// SKILL DOMAINS
// ===============================

// AddSkillDomain appends a skill domain to a draft
func (c *Controller) AddSkillDomain(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var input services.SkillDomainInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	sd, err := c.drafts.AddSkillDomain(r.Context(), designID, actor, &input)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, sd)
}

// UpdateSkillDomain replaces a skill domain's fields
func (c *Controller) UpdateSkillDomain(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var input services.SkillDomainInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}
	input.Slug = r.PathValue("slug")

	sd, err := c.drafts.UpdateSkillDomain(r.Context(), designID, actor, &input)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, sd)
}

// RemoveSkillDomain deletes a skill domain by slug
func (c *Controller) RemoveSkillDomain(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	if err := c.drafts.RemoveSkillDomain(r.Context(), designID, actor, r.PathValue("slug")); err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, nil)
}

// ===============================
// RECOGNITION TIERS + SOURCES
// ===============================

// AddRecognitionTier appends a tier to a draft
func (c *Controller) AddRecognitionTier(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var input services.RecognitionTierInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	rt, err := c.drafts.AddRecognitionTier(r.Context(), designID, actor, &input)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusCreated, rt)
}

// UpdateRecognitionTier replaces a tier's fields
func (c *Controller) UpdateRecognitionTier(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var input services.RecognitionTierInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}
	input.Name = r.PathValue("name")

	rt, err := c.drafts.UpdateRecognitionTier(r.Context(), designID, actor, &input)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, rt)
}

// RemoveRecognitionTier deletes a tier by name
func (c *Controller) RemoveRecognitionTier(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	if err := c.drafts.RemoveRecognitionTier(r.Context(), designID, actor, r.PathValue("name")); err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, nil)
}

// ReplaceRecognitionSources swaps the full recognition source set
func (c *Controller) ReplaceRecognitionSources(w http.ResponseWriter, r *http.Request) {
	actor, designID, ok := c.actorAndDesign(w, r)
	if !ok {
		return
	}

	var inputs []services.RecognitionSourceInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		c.respond.BadRequest(w, r, "invalid JSON body")
		return
	}

	sources, err := c.drafts.ReplaceRecognitionSources(r.Context(), designID, actor, inputs)
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, sources)
}

func (c *Controller) actorAndDesign(w http.ResponseWriter, r *http.Request) (services.Actor, uuid.UUID, bool) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return services.Actor{}, uuid.Nil, false
	}
	designID, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		c.respond.BadRequest(w, r, "design id must be a valid UUID")
		return services.Actor{}, uuid.Nil, false
	}
	return actor, designID, true
}
