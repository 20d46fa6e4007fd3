package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
	"github.com/verdant/esgengine/pkg/redis"
)

// aggregator is the live roll-up capability
type aggregator interface {
	Aggregate(ctx context.Context, portfolioID string) (*contracts.AggregateResult, error)
}

// holdingsWriter replaces a portfolio's holdings snapshot
type holdingsWriter interface {
	ReplaceHoldings(ctx context.Context, portfolioID string, holdings []contracts.Holding) error
}

// PortfolioHandler handles portfolio API endpoints
type PortfolioHandler struct {
	portfolios contracts.PortfolioRepository
	holdings   holdingsWriter
	aggregator aggregator
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(
	portfolios contracts.PortfolioRepository,
	holdings holdingsWriter,
	agg aggregator,
	cache *redis.Cache,
	log *logger.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolios: portfolios,
		holdings:   holdings,
		aggregator: agg,
		cache:      cache,
		logger:     log,
	}
}

// GetHoldings returns the current holdings snapshot
// GET /api/portfolios/{id}/holdings
func (h *PortfolioHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	holdings, err := h.portfolios.GetHoldings(ctx, portfolioID)
	if err != nil {
		h.logger.WithError(err).WithField("portfolio", portfolioID).Error("Failed to get holdings")
		respondError(w, http.StatusInternalServerError, "Failed to get holdings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"holdings":     holdings,
		"total_weight": contracts.TotalWeight(holdings),
	})
}

// SetHoldings replaces the holdings snapshot atomically
// PUT /api/portfolios/{id}/holdings
func (h *PortfolioHandler) SetHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	var holdings []contracts.Holding
	if err := json.NewDecoder(r.Body).Decode(&holdings); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.holdings.ReplaceHoldings(ctx, portfolioID, holdings); err != nil {
		if errors.Is(err, contracts.ErrInvalidHoldings) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).WithField("portfolio", portfolioID).Error("Failed to replace holdings")
		respondError(w, http.StatusInternalServerError, "Failed to replace holdings")
		return
	}

	// The stored roll-up no longer reflects the snapshot
	h.cache.Delete(ctx, redis.PortfolioScoreKey(portfolioID))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"holdings":     len(holdings),
	})
}

// GetScore returns the stored portfolio score
// GET /api/portfolios/{id}/score
func (h *PortfolioHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	var score contracts.PortfolioScore
	err := h.cache.GetOrSet(ctx, redis.PortfolioScoreKey(portfolioID), &score, redis.TTLMedium,
		func() (interface{}, error) {
			s, err := h.portfolios.GetPortfolioScore(ctx, portfolioID)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Portfolio score not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("portfolio", portfolioID).Error("Failed to get portfolio score")
		respondError(w, http.StatusInternalServerError, "Failed to get portfolio score")
		return
	}

	respondJSON(w, http.StatusOK, score)
}

// Aggregate recomputes the portfolio score from the current snapshot and
// stores the result
// POST /api/portfolios/{id}/aggregate
func (h *PortfolioHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	portfolioID := mux.Vars(r)["id"]

	result, err := h.aggregator.Aggregate(ctx, portfolioID)
	if err != nil {
		h.logger.WithError(err).WithField("portfolio", portfolioID).Error("Aggregation failed")
		respondError(w, http.StatusInternalServerError, "Aggregation failed")
		return
	}

	if result.HasScore() {
		if err := h.portfolios.SavePortfolioScore(ctx, result.Score); err != nil {
			h.logger.WithError(err).WithField("portfolio", portfolioID).Error("Failed to save portfolio score")
			respondError(w, http.StatusInternalServerError, "Failed to save portfolio score")
			return
		}
		h.cache.Delete(ctx, redis.PortfolioScoreKey(portfolioID))
	}

	respondJSON(w, http.StatusOK, result)
}
