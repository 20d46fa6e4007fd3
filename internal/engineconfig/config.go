package engineconfig

import (
	"time"

	"github.com/verdant/esgengine/internal/contracts"
)

// Config is the scoring policy for the aggregation engine. Static,
// validated at load; never mutated at request time.
type Config struct {
	Meta       Meta               `yaml:"meta" json:"meta"`
	Dimensions Dimensions         `yaml:"dimensions" json:"dimensions"`
	Sources    map[string]Source  `yaml:"sources" json:"sources"`
	Confidence ConfidencePolicy   `yaml:"confidence" json:"confidence"`
	Benchmark  BenchmarkPolicy    `yaml:"benchmark" json:"benchmark"`
	Portfolio  PortfolioPolicy    `yaml:"portfolio" json:"portfolio"`
	Refresh    RefreshPolicy      `yaml:"refresh" json:"refresh"`
}

// Meta identifies the policy for audit trails
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
}

// Dimensions holds the E/S/G weights used for the overall score.
// Must sum to 1.0.
type Dimensions struct {
	Environmental float64 `yaml:"environmental" json:"environmental"`
	Social        float64 `yaml:"social" json:"social"`
	Governance    float64 `yaml:"governance" json:"governance"`
}

// Sum returns the sum of dimension weights
func (d Dimensions) Sum() float64 {
	return d.Environmental + d.Social + d.Governance
}

// Source holds the per-source-type trust factor and decay half-life.
// Relative trust ordering is a policy decision; defaults put filings
// above market data above news.
type Source struct {
	Reliability  float64 `yaml:"reliability" json:"reliability"`     // (0, 1]
	HalfLifeDays float64 `yaml:"half_life_days" json:"half_life_days"` // > 0
}

// ConfidencePolicy controls confidence saturation
type ConfidencePolicy struct {
	// Saturation is the total document weight at which aggregate
	// confidence reaches 1.0
	Saturation float64 `yaml:"saturation" json:"saturation"`
}

// BenchmarkPolicy controls sector benchmarking
type BenchmarkPolicy struct {
	// MinSectorPeers is the peer count below which a benchmark is
	// flagged low_confidence_sector (still produced, never suppressed)
	MinSectorPeers int `yaml:"min_sector_peers" json:"min_sector_peers"`
}

// PortfolioPolicy controls portfolio aggregation
type PortfolioPolicy struct {
	// CoverageThreshold is the covered-weight fraction below which an
	// aggregation result carries the PartialCoverage status
	CoverageThreshold float64 `yaml:"coverage_threshold" json:"coverage_threshold"`
}

// RefreshPolicy controls the dirty sweep
type RefreshPolicy struct {
	Workers              int `yaml:"workers" json:"workers"`
	HistoryRetentionDays int `yaml:"history_retention_days" json:"history_retention_days"`
}

// SourceFor returns the source policy for a source type
func (c *Config) SourceFor(st contracts.SourceType) (Source, bool) {
	s, ok := c.Sources[string(st)]
	return s, ok
}

// HalfLife returns the decay half-life for a source type as a duration
func (s Source) HalfLife() time.Duration {
	return time.Duration(s.HalfLifeDays * 24 * float64(time.Hour))
}

// Default returns the shipped default policy. The same values live in
// config/scoring.yaml; this is the fallback when no file is configured.
func Default() *Config {
	return &Config{
		Meta: Meta{
			PolicyID: "esg_default",
			Version:  "1",
		},
		Dimensions: Dimensions{
			Environmental: 0.4,
			Social:        0.3,
			Governance:    0.3,
		},
		Sources: map[string]Source{
			string(contracts.SourceFiling): {Reliability: 1.0, HalfLifeDays: 365},
			string(contracts.SourceMarket): {Reliability: 0.8, HalfLifeDays: 90},
			string(contracts.SourceNews):   {Reliability: 0.5, HalfLifeDays: 30},
		},
		Confidence: ConfidencePolicy{Saturation: 2.0},
		Benchmark:  BenchmarkPolicy{MinSectorPeers: 3},
		Portfolio:  PortfolioPolicy{CoverageThreshold: 0.5},
		Refresh: RefreshPolicy{
			Workers:              8,
			HistoryRetentionDays: 365,
		},
	}
}
