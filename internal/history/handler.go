package history

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stoksync/stoksync/internal/platform/httpx"
)

// Store defines the read contract the handler consumes.
type Store interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Handler exposes run history over HTTP.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// NewHandler constructs a history handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store}
}

// MountRoutes attaches history routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.recent)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}
	entries, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": entries})
}
