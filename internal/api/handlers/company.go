package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
	"github.com/verdant/esgengine/pkg/redis"
)

const defaultHistoryLimit = 30

// companyRegistrar writes registry entries
type companyRegistrar interface {
	UpsertCompany(ctx context.Context, company *contracts.Company) error
}

// CompanyHandler handles company-related API endpoints
type CompanyHandler struct {
	companies contracts.CompanyRepository
	registrar companyRegistrar
	scores    contracts.ScoreRepository
	documents contracts.DocumentReader
	cache     *redis.Cache
	logger    *logger.Logger
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(
	companies contracts.CompanyRepository,
	registrar companyRegistrar,
	scores contracts.ScoreRepository,
	documents contracts.DocumentReader,
	cache *redis.Cache,
	log *logger.Logger,
) *CompanyHandler {
	return &CompanyHandler{
		companies: companies,
		registrar: registrar,
		scores:    scores,
		documents: documents,
		cache:     cache,
		logger:    log,
	}
}

// Register adds or updates a company in the registry
// POST /api/companies
func (h *CompanyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var company contracts.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if company.ID == "" || company.SectorID == "" {
		respondError(w, http.StatusBadRequest, "id and sector_id are required")
		return
	}

	if err := h.registrar.UpsertCompany(r.Context(), &company); err != nil {
		h.logger.WithError(err).WithField("company", company.ID).Error("Failed to register company")
		respondError(w, http.StatusInternalServerError, "Failed to register company")
		return
	}

	respondJSON(w, http.StatusCreated, company)
}

// List returns all registered companies
// GET /api/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companies.ListCompanies(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list companies")
		respondError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}

// GetScore returns the current combined score for one company
// GET /api/companies/{id}/score
func (h *CompanyHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := mux.Vars(r)["id"]

	var score contracts.CompanyScore
	err := h.cache.GetOrSet(ctx, redis.CompanyScoreKey(companyID), &score, redis.TTLMedium,
		func() (interface{}, error) {
			s, err := h.scores.GetCompanyScore(ctx, companyID)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	if errors.Is(err, contracts.ErrNotFound) {
		// Distinguish "unknown company" from "known, no evidence yet"
		if _, lookupErr := h.companies.GetCompany(ctx, companyID); errors.Is(lookupErr, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Company not found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"company_id": companyID,
			"status":     contracts.ScoreStatusInsufficientData,
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("company", companyID).Error("Failed to get score")
		respondError(w, http.StatusInternalServerError, "Failed to get score")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": contracts.ScoreStatusOK,
		"score":  score,
	})
}

// GetScoreHistory returns prior scores for one company, newest first
// GET /api/companies/{id}/score/history?limit=30
func (h *CompanyHandler) GetScoreHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := mux.Vars(r)["id"]

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	history, err := h.scores.GetScoreHistory(ctx, companyID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("company", companyID).Error("Failed to get score history")
		respondError(w, http.StatusInternalServerError, "Failed to get score history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": companyID,
		"history":    history,
		"count":      len(history),
	})
}

// GetDocuments returns one company's ingested documents
// GET /api/companies/{id}/documents?since=2026-01-01T00:00:00Z
func (h *CompanyHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := mux.Vars(r)["id"]

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid since timestamp (RFC3339)")
			return
		}
		since = &parsed
	}

	docs, err := h.documents.DocumentsFor(ctx, companyID, since)
	if err != nil {
		h.logger.WithError(err).WithField("company", companyID).Error("Failed to get documents")
		respondError(w, http.StatusInternalServerError, "Failed to get documents")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": companyID,
		"documents":  docs,
		"count":      len(docs),
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
