package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant/esgengine/internal/contracts"
)

// Registry is the company/sector lookup table backing the engine
type Registry struct {
	db *pgxpool.Pool
}

// NewRegistry creates a new Registry instance
func NewRegistry(db *pgxpool.Pool) *Registry {
	return &Registry{db: db}
}

// GetCompany retrieves one company by id
func (r *Registry) GetCompany(ctx context.Context, companyID string) (*contracts.Company, error) {
	company := &contracts.Company{}
	err := r.db.QueryRow(ctx,
		`SELECT company_id, name, sector_id FROM esg.companies WHERE company_id = $1`,
		companyID,
	).Scan(&company.ID, &company.Name, &company.SectorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", companyID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query company: %w", err)
	}
	return company, nil
}

// GetCompaniesBySector returns one sector's companies
func (r *Registry) GetCompaniesBySector(ctx context.Context, sectorID string) ([]contracts.Company, error) {
	rows, err := r.db.Query(ctx,
		`SELECT company_id, name, sector_id FROM esg.companies WHERE sector_id = $1 ORDER BY company_id`,
		sectorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sector companies: %w", err)
	}
	defer rows.Close()

	return scanCompanies(rows)
}

// ListCompanies returns every registered company
func (r *Registry) ListCompanies(ctx context.Context) ([]contracts.Company, error) {
	rows, err := r.db.Query(ctx,
		`SELECT company_id, name, sector_id FROM esg.companies ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	return scanCompanies(rows)
}

// UpsertCompany registers or updates a company
func (r *Registry) UpsertCompany(ctx context.Context, company *contracts.Company) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO esg.companies (company_id, name, sector_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id) DO UPDATE SET
			name = EXCLUDED.name,
			sector_id = EXCLUDED.sector_id
	`, company.ID, company.Name, company.SectorID)
	if err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}
	return nil
}

func scanCompanies(rows pgx.Rows) ([]contracts.Company, error) {
	var companies []contracts.Company
	for rows.Next() {
		var c contracts.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.SectorID); err != nil {
			return nil, fmt.Errorf("scan company row: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company rows: %w", err)
	}
	return companies, nil
}
