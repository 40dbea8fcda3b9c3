package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stoksync/stoksync/internal/platform/httpx"
)

// Store defines the ERP read/write contract the handler consumes.
type Store interface {
	Locations(ctx context.Context) ([]Lookup, error)
	PriceLists(ctx context.Context) ([]Lookup, error)
	Categories(ctx context.Context) ([]Lookup, error)
	UpdatePrices(ctx context.Context, updates []PriceUpdate) error
}

// Handler exposes ERP reference data and price corrections over HTTP.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// NewHandler constructs a catalog handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store}
}

// MountRoutes attaches ERP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/locations", h.lookup(h.store.Locations))
	r.Get("/price-lists", h.lookup(h.store.PriceLists))
	r.Get("/categories", h.lookup(h.store.Categories))
	r.Post("/price-updates", h.updatePrices)
}

func (h *Handler) lookup(fetch func(context.Context) ([]Lookup, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := fetch(r.Context())
		if err != nil {
			h.logger.Error("erp lookup", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// updatePrices writes corrected prices back to the ERP, typically for
// products flagged as unpriced during a run.
func (h *Handler) updatePrices(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Updates []struct {
			ERPProductID int64   `json:"erp_product_id"`
			PriceListID  int64   `json:"price_list_id"`
			NewPrice     float64 `json:"new_price"`
		} `json:"updates"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil || len(payload.Updates) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "updates must be a non-empty array")
		return
	}
	updates := make([]PriceUpdate, 0, len(payload.Updates))
	for _, u := range payload.Updates {
		updates = append(updates, PriceUpdate{
			ERPProductID: u.ERPProductID,
			PriceListID:  u.PriceListID,
			NewPrice:     decimal.NewFromFloat(u.NewPrice),
		})
	}
	if err := h.store.UpdatePrices(r.Context(), updates); err != nil {
		if errors.Is(err, ErrInvalidPriceUpdate) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("update erp prices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": len(updates)})
}
