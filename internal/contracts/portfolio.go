package contracts

import "time"

// Holding is one position in a portfolio. Weights within a portfolio sum
// to 1; that invariant is enforced when holdings are loaded, not here.
type Holding struct {
	PortfolioID string  `json:"portfolio_id"`
	CompanyID   string  `json:"company_id"`
	Weight      float64 `json:"weight"` // (0, 1]
}

// PortfolioStatus qualifies an aggregation result. PartialCoverage is a
// warning-bearing success, not a failure.
type PortfolioStatus string

const (
	PortfolioStatusFull            PortfolioStatus = "full"
	PortfolioStatusPartialCoverage PortfolioStatus = "partial_coverage"
	PortfolioStatusNoCoverage      PortfolioStatus = "no_coverage"
)

// PortfolioScore is the weight-rolled (E,S,G) score for one portfolio
type PortfolioScore struct {
	PortfolioID string `json:"portfolio_id"`

	E       float64 `json:"e"`
	S       float64 `json:"s"`
	G       float64 `json:"g"`
	Overall float64 `json:"overall"`

	Confidence float64   `json:"confidence"`
	AsOf       time.Time `json:"as_of"`

	// Coverage is the fraction of portfolio weight backed by a
	// CompanyScore; holdings without one are excluded from the average.
	Coverage float64         `json:"coverage"`
	Status   PortfolioStatus `json:"status"`
}

// AggregateResult is the Portfolio Aggregator output. Score is nil exactly
// when Status is NoCoverage.
type AggregateResult struct {
	Status PortfolioStatus `json:"status"`
	Score  *PortfolioScore `json:"score,omitempty"`
}

// HasScore reports whether an aggregate score was produced
func (r *AggregateResult) HasScore() bool {
	return r.Status != PortfolioStatusNoCoverage && r.Score != nil
}

// TotalWeight returns the sum of holding weights
func TotalWeight(holdings []Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		total += h.Weight
	}
	return total
}
