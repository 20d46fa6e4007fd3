package contracts

import "time"

// SectorBenchmark holds sector-relative percentile ranks and peer
// statistics derived from the current CompanyScore set of one sector.
type SectorBenchmark struct {
	SectorID string    `json:"sector_id"`
	AsOf     time.Time `json:"as_of"`

	// Percentiles maps company_id to its percentile rank in [0, 100].
	// Companies without a current score never appear here.
	Percentiles map[string]float64 `json:"percentiles"`

	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`

	PeerCount int `json:"peer_count"`

	// LowConfidence is set when the sector has fewer peers than the
	// configured minimum. The benchmark is still produced; display
	// policy is the caller's decision.
	LowConfidence bool `json:"low_confidence_sector"`
}

// Percentile returns the percentile rank for a company, if present
func (b *SectorBenchmark) Percentile(companyID string) (float64, bool) {
	p, ok := b.Percentiles[companyID]
	return p, ok
}

// BenchmarkComparison pairs one company's score with its sector context
// for the reporting collaborator.
type BenchmarkComparison struct {
	CompanyID      string  `json:"company_id"`
	SectorID       string  `json:"sector_id"`
	Overall        float64 `json:"overall"`
	SectorMean     float64 `json:"sector_mean"`
	SectorStdDev   float64 `json:"sector_stddev"`
	Percentile     float64 `json:"percentile"`
	DiffFromMean   float64 `json:"diff_from_mean"`
	LowConfidence  bool    `json:"low_confidence_sector"`
	PeerCount      int     `json:"peer_count"`
	BenchmarkAsOf  time.Time `json:"benchmark_as_of"`
}
