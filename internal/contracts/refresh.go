package contracts

import "time"

// RefreshState is the per-company recomputation state machine:
// Clean -> Dirty -> Recomputing -> Clean. NoScore is the terminal state
// for a company whose recombination yielded InsufficientData; it leaves
// NoScore only when a new document arrives.
type RefreshState string

const (
	RefreshClean       RefreshState = "clean"
	RefreshDirty       RefreshState = "dirty"
	RefreshRecomputing RefreshState = "recomputing"
	RefreshNoScore     RefreshState = "no_score"
)

// SweepResult summarizes one dirty sweep
type SweepResult struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	CompaniesSwept    int `json:"companies_swept"`
	ScoresUpdated     int `json:"scores_updated"`
	NoScore           int `json:"no_score"`
	Failed            int `json:"failed"`
	SectorsRecomputed int `json:"sectors_recomputed"`
	PortfoliosUpdated int `json:"portfolios_updated"`
}
