package contracts

import (
	"fmt"
	"time"
)

// SourceType classifies where a document came from. Reliability and decay
// half-life are configured per source type.
type SourceType string

const (
	SourceFiling SourceType = "filing"
	SourceNews   SourceType = "news"
	SourceMarket SourceType = "market"
)

// Valid reports whether the source type is one of the known kinds
func (s SourceType) Valid() bool {
	switch s {
	case SourceFiling, SourceNews, SourceMarket:
		return true
	}
	return false
}

// Document is an ingested, already-scored document. Immutable once stored;
// uniquely keyed by (SourceID, CompanyID, PublishedAt, SourceType).
type Document struct {
	SourceID    string     `json:"source_id"`
	CompanyID   string     `json:"company_id"`
	SourceType  SourceType `json:"source_type"`
	PublishedAt time.Time  `json:"published_at"`
	IngestedAt  time.Time  `json:"ingested_at"`
	RawTextRef  string     `json:"raw_text_ref"`

	// Per-document sub-scores from the text-scoring collaborator
	E          float64 `json:"e"`          // 0 ~ 100
	S          float64 `json:"s"`          // 0 ~ 100
	G          float64 `json:"g"`          // 0 ~ 100
	Confidence float64 `json:"confidence"` // 0 ~ 1
}

// Validate checks required fields and range invariants at ingestion time.
// Returns an error wrapping ErrInvalidDocument on any violation.
func (d *Document) Validate() error {
	if d.SourceID == "" {
		return fmt.Errorf("%w: source_id is required", ErrInvalidDocument)
	}
	if d.CompanyID == "" {
		return fmt.Errorf("%w: company_id is required", ErrInvalidDocument)
	}
	if !d.SourceType.Valid() {
		return fmt.Errorf("%w: unknown source_type %q", ErrInvalidDocument, d.SourceType)
	}
	if d.PublishedAt.IsZero() {
		return fmt.Errorf("%w: published_at is required", ErrInvalidDocument)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.4f outside [0, 1]", ErrInvalidDocument, d.Confidence)
	}
	for name, v := range map[string]float64{"e": d.E, "s": d.S, "g": d.G} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s score %.4f outside [0, 100]", ErrInvalidDocument, name, v)
		}
	}
	return nil
}

// Age returns the document age relative to now
func (d *Document) Age(now time.Time) time.Duration {
	return now.Sub(d.PublishedAt)
}

// IngestResult reports the outcome of an ingest call
type IngestResult string

const (
	IngestInserted  IngestResult = "inserted"
	IngestDuplicate IngestResult = "duplicate"
)

// RawDocument is an unscored document produced by a fetcher. The ingest
// pipeline runs it through the text scorer before storage.
type RawDocument struct {
	SourceID    string     `json:"source_id"`
	CompanyID   string     `json:"company_id"`
	SourceType  SourceType `json:"source_type"`
	PublishedAt time.Time  `json:"published_at"`
	RawText     string     `json:"raw_text"`
	RawTextRef  string     `json:"raw_text_ref"`
}

// DocumentScore is the text scorer's verdict on a single document
type DocumentScore struct {
	E          float64 `json:"e"`
	S          float64 `json:"s"`
	G          float64 `json:"g"`
	Confidence float64 `json:"confidence"`
}
