package settings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stoksync/stoksync/internal/platform/httpx"
)

// Store defines the persistence contract the handler consumes.
type Store interface {
	MarketplaceConfig(ctx context.Context) (MarketplaceConfig, error)
	SaveMarketplaceConfig(ctx context.Context, cfg MarketplaceConfig) error
	SyncIntervalMinutes(ctx context.Context) (int, error)
	SaveAppSetting(ctx context.Context, key, value string) error
	Branches(ctx context.Context) ([]Branch, error)
	UpsertBranch(ctx context.Context, b Branch) (int64, error)
	CategoryRules(ctx context.Context) ([]CategoryRule, error)
	UpsertRule(ctx context.Context, rule CategoryRule) error
}

// ConnectionTester probes the marketplace API with a credentials
// snapshot. Injected to keep this package free of the client dependency.
type ConnectionTester func(ctx context.Context, cfg MarketplaceConfig) error

// Handler exposes settings, branch mappings and category rules over HTTP.
type Handler struct {
	logger *slog.Logger
	store  Store
	tester ConnectionTester
}

// NewHandler constructs a settings handler.
func NewHandler(logger *slog.Logger, store Store, tester ConnectionTester) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, tester: tester}
}

// MountRoutes attaches the settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/marketplace", h.getMarketplace)
	r.Put("/marketplace", h.putMarketplace)
	r.Post("/marketplace/test", h.testMarketplace)
	r.Get("/sync-interval", h.getSyncInterval)
	r.Put("/sync-interval", h.putSyncInterval)
}

// MountBranchRoutes attaches the branch mapping routes.
func (h *Handler) MountBranchRoutes(r chi.Router) {
	r.Get("/", h.listBranches)
	r.Put("/", h.upsertBranch)
}

// MountRuleRoutes attaches the category rule routes.
func (h *Handler) MountRuleRoutes(r chi.Router) {
	r.Get("/", h.listRules)
	r.Put("/", h.upsertRule)
}

type marketplacePayload struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	SupplierID string `json:"supplier_id"`
	TestMode   bool   `json:"test_mode"`
}

func (h *Handler) getMarketplace(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.MarketplaceConfig(r.Context())
	if err != nil {
		h.logger.Error("load marketplace config", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, marketplacePayload{
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		SupplierID: cfg.SupplierID,
		TestMode:   cfg.TestMode,
	})
}

func (h *Handler) putMarketplace(w http.ResponseWriter, r *http.Request) {
	var payload marketplacePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	cfg := MarketplaceConfig{
		APIKey:     payload.APIKey,
		APISecret:  payload.APISecret,
		SupplierID: payload.SupplierID,
		TestMode:   payload.TestMode,
	}
	if err := cfg.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.store.SaveMarketplaceConfig(r.Context(), cfg); err != nil {
		h.logger.Error("save marketplace config", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"saved": true})
}

// testMarketplace probes the marketplace with the submitted credentials,
// or with the stored ones when the body is empty.
func (h *Handler) testMarketplace(w http.ResponseWriter, r *http.Request) {
	var payload marketplacePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		payload = marketplacePayload{}
	}
	cfg := MarketplaceConfig{
		APIKey:     payload.APIKey,
		APISecret:  payload.APISecret,
		SupplierID: payload.SupplierID,
		TestMode:   payload.TestMode,
	}
	if cfg.Validate() != nil {
		stored, err := h.store.MarketplaceConfig(r.Context())
		if err != nil {
			h.logger.Error("load marketplace config", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		cfg = stored
	}
	if err := cfg.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.tester(r.Context(), cfg); err != nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) getSyncInterval(w http.ResponseWriter, r *http.Request) {
	minutes, err := h.store.SyncIntervalMinutes(r.Context())
	if err != nil {
		h.logger.Error("load sync interval", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"minutes": minutes})
}

func (h *Handler) putSyncInterval(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Minutes int `json:"minutes"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil || payload.Minutes <= 0 || payload.Minutes > 1440 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "minutes must be between 1 and 1440")
		return
	}
	if err := h.store.SaveAppSetting(r.Context(), KeySyncIntervalMinutes, strconv.Itoa(payload.Minutes)); err != nil {
		h.logger.Error("save sync interval", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"saved": true})
}

func (h *Handler) listBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.store.Branches(r.Context())
	if err != nil {
		h.logger.Error("list branches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"branches": branches})
}

func (h *Handler) upsertBranch(w http.ResponseWriter, r *http.Request) {
	var branch Branch
	if err := httpx.DecodeJSON(r, &branch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	id, err := h.store.UpsertBranch(r.Context(), branch)
	if err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
			return
		}
		h.logger.Error("upsert branch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.CategoryRules(r.Context())
	if err != nil {
		h.logger.Error("list category rules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (h *Handler) upsertRule(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CategoryCode       string  `json:"category_code"`
		CategoryName       string  `json:"category_name"`
		SyncEnabled        bool    `json:"sync_enabled"`
		PriceAdjustmentPct float64 `json:"price_adjustment_pct"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	rule := CategoryRule{
		CategoryCode:       payload.CategoryCode,
		CategoryName:       payload.CategoryName,
		SyncEnabled:        payload.SyncEnabled,
		PriceAdjustmentPct: decimal.NewFromFloat(payload.PriceAdjustmentPct),
	}
	if err := h.store.UpsertRule(r.Context(), rule); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
			return
		}
		h.logger.Error("upsert category rule", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"saved": true})
}
