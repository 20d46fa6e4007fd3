package combiner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant/esgengine/internal/contracts"
)

// Repository persists CompanyScore rows: one current row per company and
// an append-only history table.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveCompanyScore overwrites the current row and appends to history in
// one transaction
func (r *Repository) SaveCompanyScore(ctx context.Context, score *contracts.CompanyScore) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save score: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO esg.company_scores (
			company_id, sector_id, e, s, g, overall,
			confidence, document_count, as_of, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (company_id) DO UPDATE SET
			sector_id = EXCLUDED.sector_id,
			e = EXCLUDED.e,
			s = EXCLUDED.s,
			g = EXCLUDED.g,
			overall = EXCLUDED.overall,
			confidence = EXCLUDED.confidence,
			document_count = EXCLUDED.document_count,
			as_of = EXCLUDED.as_of,
			updated_at = NOW()
	`

	_, err = tx.Exec(ctx, upsert,
		score.CompanyID,
		score.SectorID,
		score.E,
		score.S,
		score.G,
		score.Overall,
		score.Confidence,
		score.DocumentCount,
		score.AsOf,
	)
	if err != nil {
		return fmt.Errorf("upsert company score: %w", err)
	}

	appendHistory := `
		INSERT INTO esg.company_score_history (
			company_id, sector_id, e, s, g, overall,
			confidence, document_count, as_of, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	_, err = tx.Exec(ctx, appendHistory,
		score.CompanyID,
		score.SectorID,
		score.E,
		score.S,
		score.G,
		score.Overall,
		score.Confidence,
		score.DocumentCount,
		score.AsOf,
	)
	if err != nil {
		return fmt.Errorf("append score history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save score: %w", err)
	}

	return nil
}

// GetCompanyScore retrieves the current score for one company
func (r *Repository) GetCompanyScore(ctx context.Context, companyID string) (*contracts.CompanyScore, error) {
	query := `
		SELECT company_id, sector_id, e, s, g, overall,
		       confidence, document_count, as_of
		FROM esg.company_scores
		WHERE company_id = $1
	`

	score := &contracts.CompanyScore{}
	err := r.db.QueryRow(ctx, query, companyID).Scan(
		&score.CompanyID,
		&score.SectorID,
		&score.E,
		&score.S,
		&score.G,
		&score.Overall,
		&score.Confidence,
		&score.DocumentCount,
		&score.AsOf,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company score %s: %w", companyID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query company score: %w", err)
	}

	return score, nil
}

// GetCurrentScores returns every current company score
func (r *Repository) GetCurrentScores(ctx context.Context) ([]contracts.CompanyScore, error) {
	query := `
		SELECT company_id, sector_id, e, s, g, overall,
		       confidence, document_count, as_of
		FROM esg.company_scores
		ORDER BY company_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query current scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// GetScoresBySector returns the current scores of one sector's companies
func (r *Repository) GetScoresBySector(ctx context.Context, sectorID string) ([]contracts.CompanyScore, error) {
	query := `
		SELECT company_id, sector_id, e, s, g, overall,
		       confidence, document_count, as_of
		FROM esg.company_scores
		WHERE sector_id = $1
		ORDER BY company_id
	`

	rows, err := r.db.Query(ctx, query, sectorID)
	if err != nil {
		return nil, fmt.Errorf("query sector scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// GetScoreHistory returns prior score rows, newest first
func (r *Repository) GetScoreHistory(ctx context.Context, companyID string, limit int) ([]contracts.CompanyScore, error) {
	query := `
		SELECT company_id, sector_id, e, s, g, overall,
		       confidence, document_count, as_of
		FROM esg.company_score_history
		WHERE company_id = $1
		ORDER BY as_of DESC, recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query score history: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// PruneHistory deletes history rows older than the given time and returns
// the number removed
func (r *Repository) PruneHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM esg.company_score_history WHERE recorded_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune score history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanScores(rows pgx.Rows) ([]contracts.CompanyScore, error) {
	var scores []contracts.CompanyScore
	for rows.Next() {
		var s contracts.CompanyScore
		if err := rows.Scan(
			&s.CompanyID,
			&s.SectorID,
			&s.E,
			&s.S,
			&s.G,
			&s.Overall,
			&s.Confidence,
			&s.DocumentCount,
			&s.AsOf,
		); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return scores, nil
}
