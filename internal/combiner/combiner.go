package combiner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/logger"
)

// Combiner turns a company's raw document scores into a single current
// (E,S,G) triple with provenance and confidence. Stateless apart from its
// collaborators; safe to run for many companies in parallel.
type Combiner struct {
	docs      contracts.DocumentReader
	companies contracts.CompanyRepository
	cfg       *engineconfig.Config
	now       func() time.Time
	logger    *logger.Logger
}

// New creates a new Combiner
func New(
	docs contracts.DocumentReader,
	companies contracts.CompanyRepository,
	cfg *engineconfig.Config,
	log *logger.Logger,
) *Combiner {
	return &Combiner{
		docs:      docs,
		companies: companies,
		cfg:       cfg,
		now:       time.Now,
		logger:    log.WithField("module", "combiner"),
	}
}

// WithClock overrides the clock (tests)
func (c *Combiner) WithClock(now func() time.Time) *Combiner {
	c.now = now
	return c
}

// Combine fetches every document for the company and combines them into a
// CompanyScore. No document is discarded; stale ones contribute with
// attenuated weight. Zero documents (or zero total weight) yields the
// InsufficientData status, never a synthesized score.
func (c *Combiner) Combine(ctx context.Context, companyID string) (*contracts.CombineResult, error) {
	company, err := c.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("get company %s: %w", companyID, err)
	}

	docs, err := c.docs.DocumentsFor(ctx, companyID, nil)
	if err != nil {
		return nil, fmt.Errorf("documents for %s: %w", companyID, err)
	}

	now := c.now()
	score, ok := c.combine(company, docs, now)
	if !ok {
		c.logger.WithFields(map[string]interface{}{
			"company":   companyID,
			"documents": len(docs),
		}).Debug("Insufficient data, no score emitted")
		return &contracts.CombineResult{Status: contracts.ScoreStatusInsufficientData}, nil
	}

	c.logger.WithFields(map[string]interface{}{
		"company":    companyID,
		"documents":  score.DocumentCount,
		"overall":    score.Overall,
		"confidence": score.Confidence,
	}).Debug("Combined company score")

	return &contracts.CombineResult{
		Status: contracts.ScoreStatusOK,
		Score:  score,
	}, nil
}

// combine is the pure weighting core
func (c *Combiner) combine(company *contracts.Company, docs []contracts.Document, now time.Time) (*contracts.CompanyScore, bool) {
	if len(docs) == 0 {
		return nil, false
	}

	var sumW, sumE, sumS, sumG float64
	contributing := 0
	newest := docs[0].PublishedAt

	for _, doc := range docs {
		if doc.PublishedAt.After(newest) {
			newest = doc.PublishedAt
		}

		w := c.Weight(doc, now)
		// A zero-confidence document is mathematically excluded, not an error
		if w <= 0 {
			continue
		}

		contributing++
		sumW += w
		sumE += w * doc.E
		sumS += w * doc.S
		sumG += w * doc.G
	}

	if sumW == 0 {
		return nil, false
	}

	e := sumE / sumW
	s := sumS / sumW
	g := sumG / sumW

	// as_of must be >= the newest contributing document's published_at
	asOf := now
	if newest.After(asOf) {
		asOf = newest
	}

	d := c.cfg.Dimensions
	return &contracts.CompanyScore{
		CompanyID:     company.ID,
		SectorID:      company.SectorID,
		E:             e,
		S:             s,
		G:             g,
		Overall:       d.Environmental*e + d.Social*s + d.Governance*g,
		Confidence:    math.Min(1, sumW/c.cfg.Confidence.Saturation),
		DocumentCount: contributing,
		AsOf:          asOf,
	}, true
}

// Weight computes a document's contribution:
// confidence * reliability(source_type) * decay(age)
func (c *Combiner) Weight(doc contracts.Document, now time.Time) float64 {
	src, ok := c.cfg.SourceFor(doc.SourceType)
	if !ok {
		// Stored records carry validated source types; an unknown one
		// means a policy/source mismatch and contributes nothing
		return 0
	}

	ageDays := doc.Age(now).Hours() / 24
	return doc.Confidence * src.Reliability * Decay(ageDays, src.HalfLifeDays)
}

// Decay is the time attenuation factor 0.5^(age_days / half_life_days).
// Future-dated documents (negative age) are not amplified beyond 1.
func Decay(ageDays, halfLifeDays float64) float64 {
	if ageDays <= 0 {
		return 1
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}
