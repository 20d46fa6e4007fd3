package engineconfig

import (
	"fmt"
	"math"

	"github.com/verdant/esgengine/internal/contracts"
)

// ValidationError is a fatal configuration failure. Raised at load,
// never at combine time.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	// === Dimensions ===
	if math.Abs(cfg.Dimensions.Sum()-1.0) > 1e-6 {
		return ValidationError{"dimensions", fmt.Sprintf("must sum to 1.0, got %.6f", cfg.Dimensions.Sum())}
	}
	for field, w := range map[string]float64{
		"dimensions.environmental": cfg.Dimensions.Environmental,
		"dimensions.social":        cfg.Dimensions.Social,
		"dimensions.governance":    cfg.Dimensions.Governance,
	} {
		if w < 0 || w > 1 {
			return ValidationError{field, "must be in range [0, 1]"}
		}
	}

	// === Sources ===
	// Every known source type needs a policy; unknown keys are rejected
	for _, st := range []contracts.SourceType{contracts.SourceFiling, contracts.SourceNews, contracts.SourceMarket} {
		src, ok := cfg.Sources[string(st)]
		if !ok {
			return ValidationError{fmt.Sprintf("sources.%s", st), "required"}
		}
		if src.Reliability <= 0 || src.Reliability > 1 {
			return ValidationError{fmt.Sprintf("sources.%s.reliability", st), "must be in range (0, 1]"}
		}
		if src.HalfLifeDays <= 0 {
			return ValidationError{fmt.Sprintf("sources.%s.half_life_days", st), "must be > 0"}
		}
	}
	for key := range cfg.Sources {
		if !contracts.SourceType(key).Valid() {
			return ValidationError{fmt.Sprintf("sources.%s", key), "unknown source type"}
		}
	}

	// === Confidence ===
	if cfg.Confidence.Saturation <= 0 {
		return ValidationError{"confidence.saturation", "must be > 0"}
	}

	// === Benchmark ===
	if cfg.Benchmark.MinSectorPeers < 1 {
		return ValidationError{"benchmark.min_sector_peers", "must be >= 1"}
	}

	// === Portfolio ===
	if cfg.Portfolio.CoverageThreshold < 0 || cfg.Portfolio.CoverageThreshold > 1 {
		return ValidationError{"portfolio.coverage_threshold", "must be in range [0, 1]"}
	}

	// === Refresh ===
	if cfg.Refresh.Workers < 1 {
		return ValidationError{"refresh.workers", "must be >= 1"}
	}
	if cfg.Refresh.HistoryRetentionDays < 1 {
		return ValidationError{"refresh.history_retention_days", "must be >= 1"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if news, ok := cfg.Sources[string(contracts.SourceNews)]; ok {
		if filing, ok := cfg.Sources[string(contracts.SourceFiling)]; ok {
			if news.Reliability > filing.Reliability {
				warnings = append(warnings, Warning{
					Code:    "NEWS_OVER_FILINGS",
					Message: "news reliability exceeds filings: unusual trust ordering",
				})
			}
			if news.HalfLifeDays > filing.HalfLifeDays {
				warnings = append(warnings, Warning{
					Code:    "NEWS_DECAYS_SLOWER",
					Message: "news half-life exceeds filings: news cycles usually decay faster",
				})
			}
		}
	}

	if cfg.Confidence.Saturation < 1 {
		warnings = append(warnings, Warning{
			Code:    "LOW_SATURATION",
			Message: "saturation < 1: a single strong document can reach full confidence",
		})
	}

	return warnings
}

// Warning is a recommended-constraint violation (logged, not fatal)
type Warning struct {
	Code    string
	Message string
}
