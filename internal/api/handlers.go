package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
)

const lookupTimeout = 3 * time.Second

// Handlers exposes read-only run history and stored records.
type Handlers struct {
	runs    store.RunRepository
	items   crawler.ItemStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandlers wires the repositories and logger.
func NewHandlers(runs store.RunRepository, items crawler.ItemStore, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		runs:    runs,
		items:   items,
		timeout: lookupTimeout,
		logger:  logger,
	}
}

// GetRun handles GET /v1/runs/{run_id}. It returns {"run": {...}} on success,
// 400 for malformed IDs, 404 when the repository reports store.ErrNotFound,
// 503 if no repository is configured, or 500 otherwise.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Stringer("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// GetItem handles GET /v1/items?url=. It returns {"item": {...}} or 404.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	if h.items == nil {
		writeError(w, http.StatusServiceUnavailable, "item store unavailable")
		return
	}
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	item, err := h.items.Get(ctx, url)
	if err != nil {
		if errors.Is(err, crawler.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		h.logger.Error("get item failed", zap.String("url", crawler.StripQuery(url)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return runID, nil
}

type runDTO struct {
	ID         string     `json:"id"`
	Profile    string     `json:"profile"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	Records    int        `json:"records"`
	Error      *string    `json:"error,omitempty"`
}

func toRunDTO(run store.Run) runDTO {
	return runDTO{
		ID:         run.ID.String(),
		Profile:    run.Profile,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		Completed:  run.Totals.Completed,
		Failed:     run.Totals.Failed,
		Records:    run.Totals.Records,
		Error:      run.ErrorMessage,
	}
}
