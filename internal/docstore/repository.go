package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant/esgengine/internal/contracts"
)

// Repository persists documents in Postgres. Identity is the unique key
// (source_id, company_id, published_at, source_type); inserts of an
// existing identity are silently skipped.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InsertDocument stores one document; reports whether a row was inserted
func (r *Repository) InsertDocument(ctx context.Context, doc contracts.Document) (bool, error) {
	query := `
		INSERT INTO esg.documents (
			source_id, company_id, source_type, published_at,
			ingested_at, raw_text_ref, e, s, g, confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_id, company_id, published_at, source_type) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		doc.SourceID,
		doc.CompanyID,
		doc.SourceType,
		doc.PublishedAt,
		doc.IngestedAt,
		doc.RawTextRef,
		doc.E,
		doc.S,
		doc.G,
		doc.Confidence,
	)
	if err != nil {
		return false, fmt.Errorf("insert document: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DocumentsFor returns a company's documents ordered by published_at
// ascending
func (r *Repository) DocumentsFor(ctx context.Context, companyID string, since *time.Time) ([]contracts.Document, error) {
	query := `
		SELECT source_id, company_id, source_type, published_at,
		       ingested_at, raw_text_ref, e, s, g, confidence
		FROM esg.documents
		WHERE company_id = $1
	`
	args := []interface{}{companyID}

	if since != nil {
		query += ` AND published_at >= $2`
		args = append(args, *since)
	}
	query += ` ORDER BY published_at ASC, source_id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// LatestPublishedAt returns the newest published_at stored for a company,
// or the zero time when none exist. Fetchers use it as the incremental
// cursor.
func (r *Repository) LatestPublishedAt(ctx context.Context, companyID string, sourceType contracts.SourceType) (time.Time, error) {
	query := `
		SELECT COALESCE(MAX(published_at), 'epoch'::timestamptz)
		FROM esg.documents
		WHERE company_id = $1 AND source_type = $2
	`

	var latest time.Time
	if err := r.db.QueryRow(ctx, query, companyID, sourceType).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("query latest published_at: %w", err)
	}
	if latest.Unix() <= 0 {
		return time.Time{}, nil
	}
	return latest, nil
}

// CountDocuments returns the number of stored documents for a company
func (r *Repository) CountDocuments(ctx context.Context, companyID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM esg.documents WHERE company_id = $1`, companyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func scanDocuments(rows pgx.Rows) ([]contracts.Document, error) {
	var docs []contracts.Document
	for rows.Next() {
		var d contracts.Document
		if err := rows.Scan(
			&d.SourceID,
			&d.CompanyID,
			&d.SourceType,
			&d.PublishedAt,
			&d.IngestedAt,
			&d.RawTextRef,
			&d.E,
			&d.S,
			&d.G,
			&d.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}
