package syncer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stoksync/stoksync/internal/platform/httpx"
)

// Handler exposes manual run triggering and the live status feed.
type Handler struct {
	logger *slog.Logger
	engine *Engine
	gate   *RunGate
	feed   *Feed
}

// NewHandler constructs a sync handler.
func NewHandler(logger *slog.Logger, engine *Engine, gate *RunGate, feed *Feed) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine, gate: gate, feed: feed}
}

// MountRoutes attaches sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.triggerRun)
	r.Get("/status", h.status)
}

// triggerRun starts a manual run in the background. The lock is taken
// here, before anything runs, so a refused trigger leaves no trace in
// history.
func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	release, err := h.gate.Acquire(r.Context(), runID)
	if err != nil {
		if errors.Is(err, ErrRunActive) {
			httpx.Problem(w, http.StatusConflict, "Run Active", "a sync run is already in progress")
			return
		}
		h.logger.Error("acquire run lock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	go func() {
		// The run outlives the HTTP request that triggered it.
		h.engine.Run(context.Background(), RunTypeManual, release)
	}()

	httpx.JSON(w, http.StatusAccepted, map[string]any{"started": true})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	messages := []StatusMessage{}
	if h.feed != nil {
		messages = h.feed.Recent()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}
