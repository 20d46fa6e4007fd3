package contracts

import (
	"context"
	"time"
)

// Storage collaborator interfaces. The engine requires only row-store
// semantics: point lookup by id and range scan by (company_id,
// published_at). Components receive these explicitly; nothing holds a
// global database handle.

// ScoreRepository persists CompanyScore rows with append-only history
type ScoreRepository interface {
	// SaveCompanyScore overwrites the current row and appends to history
	SaveCompanyScore(ctx context.Context, score *CompanyScore) error
	GetCompanyScore(ctx context.Context, companyID string) (*CompanyScore, error)
	// GetCurrentScores returns the current score of every company that
	// has one, as a consistent snapshot
	GetCurrentScores(ctx context.Context) ([]CompanyScore, error)
	GetScoresBySector(ctx context.Context, sectorID string) ([]CompanyScore, error)
	GetScoreHistory(ctx context.Context, companyID string, limit int) ([]CompanyScore, error)
	PruneHistory(ctx context.Context, olderThan time.Time) (int64, error)
}

// BenchmarkRepository persists SectorBenchmark rows with as_of
// last-writer-wins: a save whose as_of is older than or equal to the
// stored row's returns ErrStaleBenchmark and leaves the row untouched.
type BenchmarkRepository interface {
	SaveBenchmark(ctx context.Context, benchmark *SectorBenchmark) error
	GetBenchmark(ctx context.Context, sectorID string) (*SectorBenchmark, error)
}

// PortfolioRepository persists holdings and portfolio scores
type PortfolioRepository interface {
	GetHoldings(ctx context.Context, portfolioID string) ([]Holding, error)
	// PortfoliosHolding returns the ids of portfolios with a position in
	// the given company (dirty-propagation fan-out)
	PortfoliosHolding(ctx context.Context, companyID string) ([]string, error)
	SavePortfolioScore(ctx context.Context, score *PortfolioScore) error
	GetPortfolioScore(ctx context.Context, portfolioID string) (*PortfolioScore, error)
}

// CompanyRepository is the company/sector registry
type CompanyRepository interface {
	GetCompany(ctx context.Context, companyID string) (*Company, error)
	GetCompaniesBySector(ctx context.Context, sectorID string) ([]Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
}
