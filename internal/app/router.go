package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stoksync/stoksync/internal/catalog"
	"github.com/stoksync/stoksync/internal/dashboard"
	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
	"github.com/stoksync/stoksync/internal/marketplace"
	"github.com/stoksync/stoksync/internal/observability"
	"github.com/stoksync/stoksync/internal/settings"
	"github.com/stoksync/stoksync/internal/syncer"
	"github.com/stoksync/stoksync/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SyncHandler        *syncer.Handler
	IssueHandler       *issues.Handler
	HistoryHandler     *history.Handler
	DashboardHandler   *dashboard.Handler
	SettingsHandler    *settings.Handler
	CatalogHandler     *catalog.Handler
	MarketplaceHandler *marketplace.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router for the API server.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sync", params.SyncHandler.MountRoutes)
		r.Route("/issues", params.IssueHandler.MountRoutes)
		r.Route("/history", params.HistoryHandler.MountRoutes)
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		r.Route("/settings", params.SettingsHandler.MountRoutes)
		r.Route("/branches", params.SettingsHandler.MountBranchRoutes)
		r.Route("/category-rules", params.SettingsHandler.MountRuleRoutes)
		r.Route("/erp", params.CatalogHandler.MountRoutes)
		if params.MarketplaceHandler != nil {
			r.Route("/marketplace", params.MarketplaceHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
