package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verdant/esgengine/internal/benchmark"
	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
	"github.com/verdant/esgengine/pkg/redis"
)

// BenchmarkHandler handles sector benchmark API endpoints
type BenchmarkHandler struct {
	benchmarks contracts.BenchmarkRepository
	scores     contracts.ScoreRepository
	companies  contracts.CompanyRepository
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewBenchmarkHandler creates a new benchmark handler
func NewBenchmarkHandler(
	benchmarks contracts.BenchmarkRepository,
	scores contracts.ScoreRepository,
	companies contracts.CompanyRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *BenchmarkHandler {
	return &BenchmarkHandler{
		benchmarks: benchmarks,
		scores:     scores,
		companies:  companies,
		cache:      cache,
		logger:     log,
	}
}

// GetBenchmark returns the stored benchmark for one sector
// GET /api/sectors/{id}/benchmark
func (h *BenchmarkHandler) GetBenchmark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sectorID := mux.Vars(r)["id"]

	var bench contracts.SectorBenchmark
	err := h.cache.GetOrSet(ctx, redis.SectorBenchmarkKey(sectorID), &bench, redis.TTLLong,
		func() (interface{}, error) {
			b, err := h.benchmarks.GetBenchmark(ctx, sectorID)
			if err != nil {
				return nil, err
			}
			return b, nil
		})
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Benchmark not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("sector", sectorID).Error("Failed to get benchmark")
		respondError(w, http.StatusInternalServerError, "Failed to get benchmark")
		return
	}

	respondJSON(w, http.StatusOK, bench)
}

// GetComparison returns one company's score in its sector context
// GET /api/companies/{id}/benchmark
func (h *BenchmarkHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := mux.Vars(r)["id"]

	score, err := h.scores.GetCompanyScore(ctx, companyID)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Company has no current score")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("company", companyID).Error("Failed to get score")
		respondError(w, http.StatusInternalServerError, "Failed to get score")
		return
	}

	bench, err := h.benchmarks.GetBenchmark(ctx, score.SectorID)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Sector benchmark not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("sector", score.SectorID).Error("Failed to get benchmark")
		respondError(w, http.StatusInternalServerError, "Failed to get benchmark")
		return
	}

	respondJSON(w, http.StatusOK, benchmark.Compare(score, bench))
}
