package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/logger"
)

// Aggregator rolls holdings (company, weight) up into one portfolio
// score. Holdings whose company has no CompanyScore are excluded from
// both numerator and denominator; the excluded weight is reported as
// reduced coverage instead of silently averaged away.
type Aggregator struct {
	holdings contracts.PortfolioRepository
	scores   contracts.ScoreRepository
	cfg      *engineconfig.Config
	logger   *logger.Logger

	// Single-writer discipline per portfolio: a second concurrent
	// request for the same portfolio waits for the in-flight one.
	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	wg     sync.WaitGroup
	result *contracts.AggregateResult
	err    error
}

// NewAggregator creates a new Aggregator
func NewAggregator(
	holdings contracts.PortfolioRepository,
	scores contracts.ScoreRepository,
	cfg *engineconfig.Config,
	log *logger.Logger,
) *Aggregator {
	return &Aggregator{
		holdings: holdings,
		scores:   scores,
		cfg:      cfg,
		logger:   log.WithField("module", "portfolio"),
		inflight: make(map[string]*inflightCall),
	}
}

// Aggregate computes the portfolio score from a consistent snapshot of
// the current CompanyScore set. Concurrent calls for the same portfolio
// share one computation.
func (a *Aggregator) Aggregate(ctx context.Context, portfolioID string) (*contracts.AggregateResult, error) {
	a.mu.Lock()
	if call, ok := a.inflight[portfolioID]; ok {
		a.mu.Unlock()
		call.wg.Wait()
		return call.result, call.err
	}

	call := &inflightCall{}
	call.wg.Add(1)
	a.inflight[portfolioID] = call
	a.mu.Unlock()

	call.result, call.err = a.aggregate(ctx, portfolioID)
	call.wg.Done()

	a.mu.Lock()
	delete(a.inflight, portfolioID)
	a.mu.Unlock()

	return call.result, call.err
}

func (a *Aggregator) aggregate(ctx context.Context, portfolioID string) (*contracts.AggregateResult, error) {
	holdings, err := a.holdings.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("get holdings %s: %w", portfolioID, err)
	}

	current, err := a.scores.GetCurrentScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("current scores snapshot: %w", err)
	}

	scoreByCompany := make(map[string]contracts.CompanyScore, len(current))
	for _, s := range current {
		scoreByCompany[s.CompanyID] = s
	}

	result := a.Roll(portfolioID, holdings, scoreByCompany)

	a.logger.WithFields(map[string]interface{}{
		"portfolio": portfolioID,
		"holdings":  len(holdings),
		"status":    result.Status,
	}).Debug("Portfolio aggregated")

	return result, nil
}

// Roll is the pure roll-up over an explicit score snapshot
func (a *Aggregator) Roll(portfolioID string, holdings []contracts.Holding, scores map[string]contracts.CompanyScore) *contracts.AggregateResult {
	totalWeight := contracts.TotalWeight(holdings)
	if totalWeight == 0 {
		return &contracts.AggregateResult{Status: contracts.PortfolioStatusNoCoverage}
	}

	var coveredWeight, sumE, sumS, sumG, sumConf float64
	var asOf time.Time

	for _, h := range holdings {
		score, ok := scores[h.CompanyID]
		if !ok {
			// InsufficientData holding: excluded, reflected in coverage
			continue
		}

		coveredWeight += h.Weight
		sumE += h.Weight * score.E
		sumS += h.Weight * score.S
		sumG += h.Weight * score.G
		sumConf += h.Weight * score.Confidence
		if score.AsOf.After(asOf) {
			asOf = score.AsOf
		}
	}

	coverage := coveredWeight / totalWeight
	if coveredWeight == 0 {
		return &contracts.AggregateResult{Status: contracts.PortfolioStatusNoCoverage}
	}

	status := contracts.PortfolioStatusFull
	if coverage < a.cfg.Portfolio.CoverageThreshold {
		status = contracts.PortfolioStatusPartialCoverage
	}

	e := sumE / coveredWeight
	s := sumS / coveredWeight
	g := sumG / coveredWeight
	d := a.cfg.Dimensions

	return &contracts.AggregateResult{
		Status: status,
		Score: &contracts.PortfolioScore{
			PortfolioID: portfolioID,
			E:           e,
			S:           s,
			G:           g,
			Overall:     d.Environmental*e + d.Social*s + d.Governance*g,
			Confidence:  sumConf / coveredWeight,
			Coverage:    coverage,
			Status:      status,
			AsOf:        asOf,
		},
	}
}
