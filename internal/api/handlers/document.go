package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
)

// DocumentHandler handles direct document submission. Filings and other
// already-scored documents enter here; the ingest pipeline covers the
// fetched sources.
type DocumentHandler struct {
	ingester contracts.DocumentIngester
	logger   *logger.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(ingester contracts.DocumentIngester, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		ingester: ingester,
		logger:   log,
	}
}

// Ingest accepts one scored document
// POST /api/documents
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var doc contracts.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.ingester.Ingest(r.Context(), doc)
	if errors.Is(err, contracts.ErrInvalidDocument) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("company", doc.CompanyID).Error("Document ingest failed")
		respondError(w, http.StatusInternalServerError, "Document ingest failed")
		return
	}

	status := http.StatusCreated
	if result == contracts.IngestDuplicate {
		status = http.StatusOK
	}

	respondJSON(w, status, map[string]string{
		"result": string(result),
	})
}
