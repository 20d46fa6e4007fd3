package contracts

import (
	"context"
	"time"
)

// TextScorer is the external text-scoring capability. The engine treats it
// as a pure function; a failure means "document not ingestable" and is
// never fatal to a batch.
type TextScorer interface {
	ScoreDocument(ctx context.Context, rawText string) (DocumentScore, error)
}

// DocumentSource produces raw documents of one source type for ingestion
type DocumentSource interface {
	SourceType() SourceType
	Fetch(ctx context.Context, company Company, since time.Time) ([]RawDocument, error)
}

// DocumentIngester accepts documents into the store
type DocumentIngester interface {
	Ingest(ctx context.Context, doc Document) (IngestResult, error)
}

// DocumentReader provides the per-company document stream the combiner
// reads. Documents come back ordered by published_at ascending.
type DocumentReader interface {
	DocumentsFor(ctx context.Context, companyID string, since *time.Time) ([]Document, error)
}

// Combiner produces a company's current combined score
type Combiner interface {
	Combine(ctx context.Context, companyID string) (*CombineResult, error)
}

// DirtyMarker receives change notifications from the document store.
// Marking is idempotent.
type DirtyMarker interface {
	MarkCompanyDirty(companyID string)
}
