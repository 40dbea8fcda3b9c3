package marketplace

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stoksync/stoksync/internal/platform/httpx"
	"github.com/stoksync/stoksync/internal/settings"
)

// ConfigSource supplies the stored marketplace credentials.
type ConfigSource interface {
	MarketplaceConfig(ctx context.Context) (settings.MarketplaceConfig, error)
}

// Handler exposes marketplace reference data over HTTP. A fresh client
// is built per request so credential changes apply immediately.
type Handler struct {
	logger *slog.Logger
	config ConfigSource
	opts   []ClientOption
}

// NewHandler constructs a marketplace handler. Options are forwarded to
// every client built, used by tests to redirect the base URL.
func NewHandler(logger *slog.Logger, config ConfigSource, opts ...ClientOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, config: config, opts: opts}
}

// MountRoutes attaches marketplace reference routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/categories", h.categories)
	r.Get("/brands", h.brands)
}

func (h *Handler) client(ctx context.Context) (*Client, error) {
	cfg, err := h.config.MarketplaceConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewClient(cfg, h.logger, h.opts...), nil
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	client, err := h.client(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	categories, err := client.Categories(r.Context())
	if err != nil {
		h.logger.Error("fetch marketplace categories", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) brands(w http.ResponseWriter, r *http.Request) {
	client, err := h.client(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	brands, err := client.Brands(r.Context())
	if err != nil {
		h.logger.Error("fetch marketplace brands", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"brands": brands})
}
