package benchmark

import (
	"math"
	"sort"
	"time"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/logger"
)

// Calculator computes sector-relative percentile ranks and peer
// statistics from the current CompanyScore set of one sector.
type Calculator struct {
	cfg    *engineconfig.Config
	logger *logger.Logger
}

// NewCalculator creates a new Calculator
func NewCalculator(cfg *engineconfig.Config, log *logger.Logger) *Calculator {
	return &Calculator{
		cfg:    cfg,
		logger: log.WithField("module", "benchmark"),
	}
}

// Recompute builds the benchmark for one sector. Deterministic: the same
// score set always yields a bit-identical result, including as_of, which
// derives from the newest member score rather than the wall clock.
func (c *Calculator) Recompute(sectorID string, scores []contracts.CompanyScore) *contracts.SectorBenchmark {
	b := &contracts.SectorBenchmark{
		SectorID:    sectorID,
		Percentiles: make(map[string]float64, len(scores)),
		PeerCount:   len(scores),
	}

	if len(scores) < c.cfg.Benchmark.MinSectorPeers {
		b.LowConfidence = true
	}

	if len(scores) == 0 {
		return b
	}

	// Deterministic member order
	sorted := make([]contracts.CompanyScore, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CompanyID < sorted[j].CompanyID
	})

	var sum, asOf = 0.0, time.Time{}
	for _, s := range sorted {
		sum += s.Overall
		if s.AsOf.After(asOf) {
			asOf = s.AsOf
		}
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, s := range sorted {
		d := s.Overall - mean
		variance += d * d
	}
	variance /= float64(len(sorted))

	b.AsOf = asOf
	b.Mean = mean
	b.StdDev = math.Sqrt(variance)

	// Percentile of X: fraction of peers (X included) with overall <=
	// X.overall, scaled to [0, 100]. Tied companies share a percentile.
	total := float64(len(sorted))
	for _, s := range sorted {
		atOrBelow := 0
		for _, peer := range sorted {
			if peer.Overall <= s.Overall {
				atOrBelow++
			}
		}
		b.Percentiles[s.CompanyID] = 100 * float64(atOrBelow) / total
	}

	c.logger.WithFields(map[string]interface{}{
		"sector":         sectorID,
		"peers":          b.PeerCount,
		"mean":           b.Mean,
		"low_confidence": b.LowConfidence,
	}).Debug("Sector benchmark recomputed")

	return b
}

// Compare builds the reporting payload for one company against its
// sector benchmark
func Compare(score *contracts.CompanyScore, b *contracts.SectorBenchmark) *contracts.BenchmarkComparison {
	cmp := &contracts.BenchmarkComparison{
		CompanyID:     score.CompanyID,
		SectorID:      b.SectorID,
		Overall:       score.Overall,
		SectorMean:    b.Mean,
		SectorStdDev:  b.StdDev,
		DiffFromMean:  score.Overall - b.Mean,
		LowConfidence: b.LowConfidence,
		PeerCount:     b.PeerCount,
		BenchmarkAsOf: b.AsOf,
	}
	if p, ok := b.Percentile(score.CompanyID); ok {
		cmp.Percentile = p
	}
	return cmp
}
