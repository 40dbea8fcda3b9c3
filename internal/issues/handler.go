package issues

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stoksync/stoksync/internal/platform/httpx"
)

// Store defines the ledger contract the handler consumes.
type Store interface {
	Unresolved(ctx context.Context) ([]Issue, error)
	Resolved(ctx context.Context) ([]Issue, error)
	All(ctx context.Context) ([]Issue, error)
	Resolve(ctx context.Context, id int64) error
}

// Handler exposes the issue ledger over HTTP.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// NewHandler constructs an issue handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store}
}

// MountRoutes attaches issue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/export.csv", h.exportCSV)
	r.Post("/{id}/resolve", h.resolve)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.byState(r)
	if err != nil {
		h.logger.Error("list issues", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"issues": items})
}

func (h *Handler) byState(r *http.Request) ([]Issue, error) {
	switch r.URL.Query().Get("state") {
	case "", "unresolved":
		return h.store.Unresolved(r.Context())
	case "resolved":
		return h.store.Resolved(r.Context())
	case "all":
		return h.store.All(r.Context())
	default:
		return nil, httpx.ErrValidation
	}
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid issue id")
		return
	}
	if err := h.store.Resolve(r.Context(), id); err != nil {
		if errors.Is(err, ErrIssueNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("resolve issue", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resolved": true})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	items, err := h.byState(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sync-issues.csv"`)

	writer := csv.NewWriter(w)
	writer.UseCRLF = true
	_ = writer.Write([]string{"id", "erp_product_id", "barcode", "branch", "type", "message", "resolved", "created_at"})
	for _, issue := range items {
		productID := ""
		if issue.ERPProductID != nil {
			productID = strconv.FormatInt(*issue.ERPProductID, 10)
		}
		_ = writer.Write([]string{
			strconv.FormatInt(issue.ID, 10),
			productID,
			issue.Barcode,
			issue.BranchName,
			issue.Type,
			issue.Message,
			strconv.FormatBool(issue.Resolved),
			issue.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.Error("write issues csv", slog.Any("error", err))
	}
}
