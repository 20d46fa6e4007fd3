package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/verdant/esgengine/internal/benchmark"
	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/logger"
)

// portfolioAggregator is the roll-up capability the cascade needs
type portfolioAggregator interface {
	Aggregate(ctx context.Context, portfolioID string) (*contracts.AggregateResult, error)
}

// Observer is notified as a sweep lands results. Used for cache
// invalidation and the live update feed; observers must not block.
type Observer interface {
	CompanyScoreUpdated(companyID string)
	BenchmarkUpdated(sectorID string)
	PortfolioScoreUpdated(portfolioID string)
	SweepCompleted(result *contracts.SweepResult)
}

// Orchestrator sweeps dirty companies: recombine each one's score, then
// cascade into the affected sector benchmarks and portfolio scores.
// Company recomputation runs on a bounded worker pool; the cascade runs
// once per sweep after all companies settle.
type Orchestrator struct {
	tracker    *Tracker
	combiner   contracts.Combiner
	scores     contracts.ScoreRepository
	companies  contracts.CompanyRepository
	benchmarks contracts.BenchmarkRepository
	calculator *benchmark.Calculator
	portfolios contracts.PortfolioRepository
	aggregator portfolioAggregator
	cfg        *engineconfig.Config
	logger     *logger.Logger
	observer   Observer

	// Sweeps are serialized; a sweep triggered while one runs waits
	sweepMu sync.Mutex
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	tracker *Tracker,
	comb contracts.Combiner,
	scores contracts.ScoreRepository,
	companies contracts.CompanyRepository,
	benchmarks contracts.BenchmarkRepository,
	calculator *benchmark.Calculator,
	portfolios contracts.PortfolioRepository,
	aggregator portfolioAggregator,
	cfg *engineconfig.Config,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		tracker:    tracker,
		combiner:   comb,
		scores:     scores,
		companies:  companies,
		benchmarks: benchmarks,
		calculator: calculator,
		portfolios: portfolios,
		aggregator: aggregator,
		cfg:        cfg,
		logger:     log.WithField("module", "refresh"),
	}
}

// WithObserver attaches a sweep observer
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

// MarkCompanyDirty exposes the tracker to document-store notifications
func (o *Orchestrator) MarkCompanyDirty(companyID string) {
	o.tracker.MarkCompanyDirty(companyID)
}

// MarkAllDirty flags every registered company for recomputation. Used
// after a scoring policy change, which invalidates all derived scores.
func (o *Orchestrator) MarkAllDirty(ctx context.Context) (int, error) {
	companies, err := o.companies.ListCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("list companies: %w", err)
	}
	for _, c := range companies {
		o.tracker.MarkCompanyDirty(c.ID)
	}
	return len(companies), nil
}

// Sweep recomputes all currently dirty companies and cascades the
// changes. Companies that fail stay dirty and are retried next sweep.
func (o *Orchestrator) Sweep(ctx context.Context) (*contracts.SweepResult, error) {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	started := time.Now()
	dirty := o.tracker.DirtyCompanies()
	sort.Strings(dirty)

	result := &contracts.SweepResult{Started: started}
	if len(dirty) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	o.logger.WithField("companies", len(dirty)).Info("Refresh sweep started")

	var (
		mu               sync.Mutex
		touchedSectors   = make(map[string]struct{})
		touchedCompanies []string
	)

	workers := o.cfg.Refresh.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string, len(dirty))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for companyID := range jobs {
				sectorID, outcome := o.recompute(ctx, companyID)
				if outcome == "" {
					continue // no longer dirty, taken elsewhere
				}

				mu.Lock()
				result.CompaniesSwept++
				switch outcome {
				case contracts.RefreshClean:
					result.ScoresUpdated++
				case contracts.RefreshNoScore:
					result.NoScore++
				default:
					result.Failed++
				}
				if outcome != contracts.RefreshDirty {
					if sectorID != "" {
						touchedSectors[sectorID] = struct{}{}
					}
					touchedCompanies = append(touchedCompanies, companyID)
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range dirty {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	result.SectorsRecomputed = o.recomputeSectors(ctx, touchedSectors)
	result.PortfoliosUpdated = o.reaggregatePortfolios(ctx, touchedCompanies)

	result.Duration = time.Since(started)
	o.logger.WithFields(map[string]interface{}{
		"swept":      result.CompaniesSwept,
		"updated":    result.ScoresUpdated,
		"no_score":   result.NoScore,
		"failed":     result.Failed,
		"sectors":    result.SectorsRecomputed,
		"portfolios": result.PortfoliosUpdated,
		"duration":   result.Duration.String(),
	}).Info("Refresh sweep finished")

	if o.observer != nil {
		o.observer.SweepCompleted(result)
	}

	return result, nil
}

// recompute handles one company and returns its sector and final state.
// RefreshDirty as the outcome means the recompute failed and the company
// stays queued; an empty outcome means the company was no longer dirty.
func (o *Orchestrator) recompute(ctx context.Context, companyID string) (string, contracts.RefreshState) {
	if !o.tracker.BeginRecompute(companyID) {
		return "", ""
	}

	combined, err := o.combiner.Combine(ctx, companyID)
	if err != nil {
		o.logger.WithError(err).WithField("company", companyID).Error("Combine failed")
		o.tracker.Fail(companyID)
		return "", contracts.RefreshDirty
	}

	if !combined.HasScore() {
		o.tracker.Complete(companyID, contracts.RefreshNoScore)
		return o.sectorOf(ctx, companyID), contracts.RefreshNoScore
	}

	if err := o.scores.SaveCompanyScore(ctx, combined.Score); err != nil {
		o.logger.WithError(err).WithField("company", companyID).Error("Save score failed")
		o.tracker.Fail(companyID)
		return "", contracts.RefreshDirty
	}

	o.tracker.Complete(companyID, contracts.RefreshClean)
	if o.observer != nil {
		o.observer.CompanyScoreUpdated(companyID)
	}
	return combined.Score.SectorID, contracts.RefreshClean
}

func (o *Orchestrator) sectorOf(ctx context.Context, companyID string) string {
	company, err := o.companies.GetCompany(ctx, companyID)
	if err != nil {
		o.logger.WithError(err).WithField("company", companyID).Warn("Sector lookup failed")
		return ""
	}
	return company.SectorID
}

// recomputeSectors rebuilds the benchmark of every touched sector. A
// stale save means a concurrent recompute already stored a newer as_of;
// that is convergence, not an error.
func (o *Orchestrator) recomputeSectors(ctx context.Context, sectors map[string]struct{}) int {
	ids := make([]string, 0, len(sectors))
	for id := range sectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recomputed := 0
	for _, sectorID := range ids {
		scores, err := o.scores.GetScoresBySector(ctx, sectorID)
		if err != nil {
			o.logger.WithError(err).WithField("sector", sectorID).Error("Sector scores query failed")
			continue
		}

		bench := o.calculator.Recompute(sectorID, scores)
		if bench.PeerCount == 0 {
			// Sector emptied out; keep the last benchmark rather than
			// store a memberless one with a zero as_of
			continue
		}

		err = o.benchmarks.SaveBenchmark(ctx, bench)
		switch {
		case errors.Is(err, contracts.ErrStaleBenchmark):
			o.logger.WithField("sector", sectorID).Debug("Benchmark already newer, skipped")
		case err != nil:
			o.logger.WithError(err).WithField("sector", sectorID).Error("Save benchmark failed")
			continue
		default:
			recomputed++
			if o.observer != nil {
				o.observer.BenchmarkUpdated(sectorID)
			}
		}
	}
	return recomputed
}

// reaggregatePortfolios re-rolls every portfolio holding a touched company
func (o *Orchestrator) reaggregatePortfolios(ctx context.Context, companies []string) int {
	touched := make(map[string]struct{})
	for _, companyID := range companies {
		ids, err := o.portfolios.PortfoliosHolding(ctx, companyID)
		if err != nil {
			o.logger.WithError(err).WithField("company", companyID).Error("Portfolio fan-out query failed")
			continue
		}
		for _, id := range ids {
			touched[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	updated := 0
	for _, portfolioID := range ids {
		result, err := o.aggregator.Aggregate(ctx, portfolioID)
		if err != nil {
			o.logger.WithError(err).WithField("portfolio", portfolioID).Error("Portfolio aggregation failed")
			continue
		}
		if !result.HasScore() {
			continue
		}
		if err := o.portfolios.SavePortfolioScore(ctx, result.Score); err != nil {
			o.logger.WithError(err).WithField("portfolio", portfolioID).Error("Save portfolio score failed")
			continue
		}
		updated++
		if o.observer != nil {
			o.observer.PortfolioScoreUpdated(portfolioID)
		}
	}
	return updated
}
