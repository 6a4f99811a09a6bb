package gameconfig

import (
	"net/http"

	"civicforge/internal/contextutils"
	"civicforge/internal/response"
	"civicforge/internal/services"

	"go.uber.org/zap"
)

// Controller serves the resolved game configuration
type Controller struct {
	resolver *services.ConfigResolver
	respond  *response.Builder
	logger   *zap.Logger
}

// NewController creates a gameconfig controller
func NewController(resolver *services.ConfigResolver, respond *response.Builder, logger *zap.Logger) *Controller {
	return &Controller{resolver: resolver, respond: respond, logger: logger}
}

// RegisterRoutes wires the config endpoint onto the mux
func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/config", c.GetConfig)
}

// GetConfig returns the community's active config. With ?fallback=classic
// a community without an active design gets the built-in Classic rule set
// instead of an error.
func (c *Controller) GetConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok {
		c.respond.BadRequest(w, r, "missing actor identity")
		return
	}

	var err error
	var cfg interface{}
	if r.URL.Query().Get("fallback") == "classic" {
		cfg, err = c.resolver.ResolveOrClassic(r.Context(), actor.CommunityID)
	} else {
		cfg, err = c.resolver.Resolve(r.Context(), actor.CommunityID)
	}
	if err != nil {
		c.respond.Error(w, r, err)
		return
	}
	c.respond.Success(w, r, http.StatusOK, cfg)
}
