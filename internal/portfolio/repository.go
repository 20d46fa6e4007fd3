package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant/esgengine/internal/contracts"
)

// Repository persists holdings and portfolio scores
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetHoldings returns the holdings of one portfolio
func (r *Repository) GetHoldings(ctx context.Context, portfolioID string) ([]contracts.Holding, error) {
	query := `
		SELECT portfolio_id, company_id, weight
		FROM esg.holdings
		WHERE portfolio_id = $1
		ORDER BY company_id
	`

	rows, err := r.db.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []contracts.Holding
	for rows.Next() {
		var h contracts.Holding
		if err := rows.Scan(&h.PortfolioID, &h.CompanyID, &h.Weight); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}

	return holdings, nil
}

// ReplaceHoldings swaps a portfolio's holdings atomically. The sum-to-1
// weight invariant is enforced here, at ingestion of holdings.
func (r *Repository) ReplaceHoldings(ctx context.Context, portfolioID string, holdings []contracts.Holding) error {
	total := contracts.TotalWeight(holdings)
	if len(holdings) > 0 && (total < 0.999 || total > 1.001) {
		return fmt.Errorf("%w: weights for %s must sum to 1.0, got %.4f", contracts.ErrInvalidHoldings, portfolioID, total)
	}
	for _, h := range holdings {
		if h.Weight <= 0 || h.Weight > 1 {
			return fmt.Errorf("%w: %s/%s weight %.4f outside (0, 1]", contracts.ErrInvalidHoldings, portfolioID, h.CompanyID, h.Weight)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace holdings: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM esg.holdings WHERE portfolio_id = $1`, portfolioID); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}

	for _, h := range holdings {
		_, err := tx.Exec(ctx,
			`INSERT INTO esg.holdings (portfolio_id, company_id, weight) VALUES ($1, $2, $3)`,
			portfolioID, h.CompanyID, h.Weight,
		)
		if err != nil {
			return fmt.Errorf("insert holding %s: %w", h.CompanyID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace holdings: %w", err)
	}

	return nil
}

// PortfoliosHolding returns the ids of portfolios with a position in the
// given company
func (r *Repository) PortfoliosHolding(ctx context.Context, companyID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT portfolio_id FROM esg.holdings WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query portfolios holding %s: %w", companyID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio ids: %w", err)
	}

	return ids, nil
}

// SavePortfolioScore overwrites the current portfolio score
func (r *Repository) SavePortfolioScore(ctx context.Context, score *contracts.PortfolioScore) error {
	query := `
		INSERT INTO esg.portfolio_scores (
			portfolio_id, e, s, g, overall, confidence,
			coverage, status, as_of, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (portfolio_id) DO UPDATE SET
			e = EXCLUDED.e,
			s = EXCLUDED.s,
			g = EXCLUDED.g,
			overall = EXCLUDED.overall,
			confidence = EXCLUDED.confidence,
			coverage = EXCLUDED.coverage,
			status = EXCLUDED.status,
			as_of = EXCLUDED.as_of,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		score.PortfolioID,
		score.E,
		score.S,
		score.G,
		score.Overall,
		score.Confidence,
		score.Coverage,
		string(score.Status),
		score.AsOf,
	)
	if err != nil {
		return fmt.Errorf("save portfolio score: %w", err)
	}

	return nil
}

// GetPortfolioScore retrieves the current score for one portfolio
func (r *Repository) GetPortfolioScore(ctx context.Context, portfolioID string) (*contracts.PortfolioScore, error) {
	query := `
		SELECT portfolio_id, e, s, g, overall, confidence,
		       coverage, status, as_of
		FROM esg.portfolio_scores
		WHERE portfolio_id = $1
	`

	score := &contracts.PortfolioScore{}
	var status string
	err := r.db.QueryRow(ctx, query, portfolioID).Scan(
		&score.PortfolioID,
		&score.E,
		&score.S,
		&score.G,
		&score.Overall,
		&score.Confidence,
		&score.Coverage,
		&status,
		&score.AsOf,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("portfolio score %s: %w", portfolioID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio score: %w", err)
	}
	score.Status = contracts.PortfolioStatus(status)

	return score, nil
}
