package router

import (
	"encoding/json"
	"net/http"
	"time"

	"civicforge/internal/cache"
	"civicforge/internal/database"
	"civicforge/internal/handlers/api/v1/designs"
	"civicforge/internal/handlers/api/v1/gameconfig"
	"civicforge/internal/handlers/api/v1/governance"
	"civicforge/internal/middleware"
	"civicforge/internal/response"
	"civicforge/internal/services"

	"go.uber.org/zap"
)

// New assembles the full HTTP handler: health endpoints plus the v1 API
// behind the middleware chain
func New(svcs *services.Collection, db *database.Manager, c cache.Cache, logger *zap.Logger) http.Handler {
	respond := response.NewBuilder(logger)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthHandler(db, c))

	api := http.NewServeMux()
	designs.NewController(svcs.Drafts, respond, logger).RegisterRoutes(api)
	governance.NewController(svcs.Governance, svcs.Activation, respond, logger).RegisterRoutes(api)
	gameconfig.NewController(svcs.Resolver, respond, logger).RegisterRoutes(api)

	mux.Handle("/api/v1/", middleware.Chain(api,
		middleware.Actor,
	))

	return middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
	)
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

func healthHandler(db *database.Manager, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status: "ok",
			Checks: map[string]string{"database": "ok", "cache": "ok"},
			Time:   time.Now().UTC(),
		}
		code := http.StatusOK

		if err := db.Health(r.Context()); err != nil {
			status.Status = "degraded"
			status.Checks["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := c.Health(r.Context()); err != nil {
			status.Status = "degraded"
			status.Checks["cache"] = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
