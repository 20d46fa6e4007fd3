package handlers

import (
	"context"
	"net/http"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/ingest"
	"github.com/verdant/esgengine/pkg/logger"
)

// sweeper is the refresh capability the admin endpoints drive
type sweeper interface {
	Sweep(ctx context.Context) (*contracts.SweepResult, error)
	MarkAllDirty(ctx context.Context) (int, error)
}

// ingestRunner triggers an ingest run
type ingestRunner interface {
	Run(ctx context.Context) (*ingest.Stats, error)
}

// AdminHandler handles operational endpoints
type AdminHandler struct {
	sweeper  sweeper
	ingester ingestRunner
	logger   *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sw sweeper, ing ingestRunner, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper:  sw,
		ingester: ing,
		logger:   log,
	}
}

// Refresh sweeps all currently dirty companies
// POST /api/refresh
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Refresh sweep failed")
		respondError(w, http.StatusInternalServerError, "Refresh sweep failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RefreshAll marks every company dirty and sweeps, recomputing the whole
// score set. Used after a scoring policy change.
// POST /api/refresh/all
func (h *AdminHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	marked, err := h.sweeper.MarkAllDirty(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to mark companies")
		respondError(w, http.StatusInternalServerError, "Failed to mark companies")
		return
	}

	result, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Refresh sweep failed")
		respondError(w, http.StatusInternalServerError, "Refresh sweep failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"marked": marked,
		"sweep":  result,
	})
}

// Ingest runs the ingest pipeline for all companies
// POST /api/ingest
func (h *AdminHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.ingester == nil {
		respondError(w, http.StatusServiceUnavailable, "Ingest pipeline not configured")
		return
	}

	stats, err := h.ingester.Run(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Ingest run failed")
		respondError(w, http.StatusInternalServerError, "Ingest run failed")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
