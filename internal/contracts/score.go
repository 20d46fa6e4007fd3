package contracts

import "time"

// ScoreStatus distinguishes a real score from the expected "no evidence
// yet" steady state. InsufficientData is not an error.
type ScoreStatus string

const (
	ScoreStatusOK               ScoreStatus = "ok"
	ScoreStatusInsufficientData ScoreStatus = "insufficient_data"
)

// CompanyScore is the current combined (E,S,G) position for one company.
// Derived and recomputed, never hand-edited; prior values are retained as
// append-only history.
type CompanyScore struct {
	CompanyID string `json:"company_id"`
	SectorID  string `json:"sector_id"`

	E       float64 `json:"e"`
	S       float64 `json:"s"`
	G       float64 `json:"g"`
	Overall float64 `json:"overall"`

	Confidence float64 `json:"confidence"`
	// DocumentCount counts contributing documents only; zero-weight
	// documents are excluded
	DocumentCount int       `json:"document_count"`
	AsOf          time.Time `json:"as_of"`
}

// CombineResult is the Score Combiner output. Score is nil exactly when
// Status is InsufficientData.
type CombineResult struct {
	Status ScoreStatus   `json:"status"`
	Score  *CompanyScore `json:"score,omitempty"`
}

// HasScore reports whether a combined score was produced
func (r *CombineResult) HasScore() bool {
	return r.Status == ScoreStatusOK && r.Score != nil
}

// Company is a registry entry mapping a company to its sector
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SectorID string `json:"sector_id"`
}
