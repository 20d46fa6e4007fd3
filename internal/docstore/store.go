// Package docstore is the append-only document store. Documents arrive
// already scored, are validated and deduplicated on insert, and are
// immutable afterwards. Every successful insert notifies the dirty
// marker so downstream scores get recomputed.
package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
)

// storage is the persistence surface the store needs
type storage interface {
	// InsertDocument stores the document unless its identity already
	// exists; reports whether a row was inserted
	InsertDocument(ctx context.Context, doc contracts.Document) (bool, error)
	DocumentsFor(ctx context.Context, companyID string, since *time.Time) ([]contracts.Document, error)
}

// Store accepts documents and serves the per-company read stream
type Store struct {
	storage storage
	marker  contracts.DirtyMarker
	logger  *logger.Logger
	now     func() time.Time
}

// NewStore creates a new Store
func NewStore(storage storage, marker contracts.DirtyMarker, log *logger.Logger) *Store {
	return &Store{
		storage: storage,
		marker:  marker,
		logger:  log.WithField("module", "docstore"),
		now:     time.Now,
	}
}

// WithClock overrides the ingestion clock
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ingest validates and stores one document. A document whose identity
// (source_id, company_id, published_at, source_type) is already stored
// is reported as a duplicate and changes nothing; only a real insert
// marks the company dirty.
func (s *Store) Ingest(ctx context.Context, doc contracts.Document) (contracts.IngestResult, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}

	doc.IngestedAt = s.now().UTC()

	inserted, err := s.storage.InsertDocument(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert document %s/%s: %w", doc.CompanyID, doc.SourceID, err)
	}
	if !inserted {
		return contracts.IngestDuplicate, nil
	}

	s.logger.WithFields(map[string]interface{}{
		"company":     doc.CompanyID,
		"source":      doc.SourceID,
		"source_type": doc.SourceType,
	}).Debug("Document ingested")

	if s.marker != nil {
		s.marker.MarkCompanyDirty(doc.CompanyID)
	}

	return contracts.IngestInserted, nil
}

// DocumentsFor returns a company's documents ordered by published_at
// ascending, optionally restricted to those published at or after since
func (s *Store) DocumentsFor(ctx context.Context, companyID string, since *time.Time) ([]contracts.Document, error) {
	return s.storage.DocumentsFor(ctx, companyID, since)
}
