package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant/esgengine/internal/benchmark"
	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/logger"
)

type fakeCombiner struct {
	results map[string]*contracts.CombineResult
	errs    map[string]error
}

func (f *fakeCombiner) Combine(_ context.Context, companyID string) (*contracts.CombineResult, error) {
	if err, ok := f.errs[companyID]; ok {
		return nil, err
	}
	if r, ok := f.results[companyID]; ok {
		return r, nil
	}
	return &contracts.CombineResult{Status: contracts.ScoreStatusInsufficientData}, nil
}

type fakeScoreRepo struct {
	saved   map[string]contracts.CompanyScore
	saveErr error
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{saved: make(map[string]contracts.CompanyScore)}
}

func (f *fakeScoreRepo) SaveCompanyScore(_ context.Context, s *contracts.CompanyScore) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[s.CompanyID] = *s
	return nil
}

func (f *fakeScoreRepo) GetCompanyScore(_ context.Context, id string) (*contracts.CompanyScore, error) {
	if s, ok := f.saved[id]; ok {
		return &s, nil
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeScoreRepo) GetCurrentScores(_ context.Context) ([]contracts.CompanyScore, error) {
	var out []contracts.CompanyScore
	for _, s := range f.saved {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeScoreRepo) GetScoresBySector(_ context.Context, sectorID string) ([]contracts.CompanyScore, error) {
	var out []contracts.CompanyScore
	for _, s := range f.saved {
		if s.SectorID == sectorID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScoreRepo) GetScoreHistory(_ context.Context, _ string, _ int) ([]contracts.CompanyScore, error) {
	return nil, nil
}

func (f *fakeScoreRepo) PruneHistory(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type fakeCompanyRepo struct {
	companies map[string]contracts.Company
}

func (f *fakeCompanyRepo) GetCompany(_ context.Context, id string) (*contracts.Company, error) {
	if c, ok := f.companies[id]; ok {
		return &c, nil
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeCompanyRepo) GetCompaniesBySector(_ context.Context, sectorID string) ([]contracts.Company, error) {
	var out []contracts.Company
	for _, c := range f.companies {
		if c.SectorID == sectorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCompanyRepo) ListCompanies(_ context.Context) ([]contracts.Company, error) {
	var out []contracts.Company
	for _, c := range f.companies {
		out = append(out, c)
	}
	return out, nil
}

type fakeBenchmarkRepo struct {
	saved map[string]contracts.SectorBenchmark
	err   error
}

func newFakeBenchmarkRepo() *fakeBenchmarkRepo {
	return &fakeBenchmarkRepo{saved: make(map[string]contracts.SectorBenchmark)}
}

func (f *fakeBenchmarkRepo) SaveBenchmark(_ context.Context, b *contracts.SectorBenchmark) error {
	if f.err != nil {
		return f.err
	}
	f.saved[b.SectorID] = *b
	return nil
}

func (f *fakeBenchmarkRepo) GetBenchmark(_ context.Context, sectorID string) (*contracts.SectorBenchmark, error) {
	if b, ok := f.saved[sectorID]; ok {
		return &b, nil
	}
	return nil, contracts.ErrNotFound
}

type fakePortfolioRepo struct {
	byCompany map[string][]string
	saved     map[string]contracts.PortfolioScore
}

func newFakePortfolioRepo() *fakePortfolioRepo {
	return &fakePortfolioRepo{
		byCompany: make(map[string][]string),
		saved:     make(map[string]contracts.PortfolioScore),
	}
}

func (f *fakePortfolioRepo) GetHoldings(_ context.Context, _ string) ([]contracts.Holding, error) {
	return nil, nil
}

func (f *fakePortfolioRepo) PortfoliosHolding(_ context.Context, companyID string) ([]string, error) {
	return f.byCompany[companyID], nil
}

func (f *fakePortfolioRepo) SavePortfolioScore(_ context.Context, s *contracts.PortfolioScore) error {
	f.saved[s.PortfolioID] = *s
	return nil
}

func (f *fakePortfolioRepo) GetPortfolioScore(_ context.Context, id string) (*contracts.PortfolioScore, error) {
	return nil, contracts.ErrNotFound
}

type fakeAggregator struct {
	results map[string]*contracts.AggregateResult
	calls   []string
}

func (f *fakeAggregator) Aggregate(_ context.Context, portfolioID string) (*contracts.AggregateResult, error) {
	f.calls = append(f.calls, portfolioID)
	if r, ok := f.results[portfolioID]; ok {
		return r, nil
	}
	return &contracts.AggregateResult{Status: contracts.PortfolioStatusNoCoverage}, nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func okResult(companyID, sectorID string, overall float64) *contracts.CombineResult {
	return &contracts.CombineResult{
		Status: contracts.ScoreStatusOK,
		Score: &contracts.CompanyScore{
			CompanyID:  companyID,
			SectorID:   sectorID,
			E:          overall,
			S:          overall,
			G:          overall,
			Overall:    overall,
			Confidence: 0.8,
			AsOf:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

type sweepFixture struct {
	tracker    *Tracker
	combiner   *fakeCombiner
	scores     *fakeScoreRepo
	companies  *fakeCompanyRepo
	benchmarks *fakeBenchmarkRepo
	portfolios *fakePortfolioRepo
	aggregator *fakeAggregator
	orch       *Orchestrator
}

func newSweepFixture() *sweepFixture {
	f := &sweepFixture{
		tracker: NewTracker(),
		combiner: &fakeCombiner{
			results: make(map[string]*contracts.CombineResult),
			errs:    make(map[string]error),
		},
		scores:     newFakeScoreRepo(),
		companies:  &fakeCompanyRepo{companies: make(map[string]contracts.Company)},
		benchmarks: newFakeBenchmarkRepo(),
		portfolios: newFakePortfolioRepo(),
		aggregator: &fakeAggregator{results: make(map[string]*contracts.AggregateResult)},
	}

	cfg := engineconfig.Default()
	log := testLogger()
	f.orch = NewOrchestrator(
		f.tracker,
		f.combiner,
		f.scores,
		f.companies,
		f.benchmarks,
		benchmark.NewCalculator(cfg, log),
		f.portfolios,
		f.aggregator,
		cfg,
		log,
	)
	return f
}

func TestSweep_Empty(t *testing.T) {
	f := newSweepFixture()

	result, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.CompaniesSwept)
}

func TestSweep_RecomputesAndCascades(t *testing.T) {
	f := newSweepFixture()
	f.combiner.results["acme"] = okResult("acme", "tech", 70)
	f.portfolios.byCompany["acme"] = []string{"growth"}
	f.aggregator.results["growth"] = &contracts.AggregateResult{
		Status: contracts.PortfolioStatusFull,
		Score:  &contracts.PortfolioScore{PortfolioID: "growth", Overall: 70},
	}

	f.tracker.MarkCompanyDirty("acme")
	result, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.CompaniesSwept)
	assert.Equal(t, 1, result.ScoresUpdated)
	assert.Equal(t, 1, result.SectorsRecomputed)
	assert.Equal(t, 1, result.PortfoliosUpdated)

	assert.Contains(t, f.scores.saved, "acme")
	assert.Contains(t, f.benchmarks.saved, "tech")
	assert.Contains(t, f.portfolios.saved, "growth")
	assert.Equal(t, contracts.RefreshClean, f.tracker.State("acme"))
}

func TestSweep_InsufficientDataParksNoScore(t *testing.T) {
	f := newSweepFixture()
	f.companies.companies["empty"] = contracts.Company{ID: "empty", SectorID: "tech"}

	f.tracker.MarkCompanyDirty("empty")
	result, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.NoScore)
	assert.Zero(t, result.ScoresUpdated)
	assert.Equal(t, contracts.RefreshNoScore, f.tracker.State("empty"))
	assert.NotContains(t, f.scores.saved, "empty")

	// Second sweep ignores the parked company
	result, err = f.orch.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.CompaniesSwept)
}

func TestSweep_FailureStaysDirty(t *testing.T) {
	f := newSweepFixture()
	f.combiner.errs["flaky"] = errors.New("db timeout")

	f.tracker.MarkCompanyDirty("flaky")
	result, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, contracts.RefreshDirty, f.tracker.State("flaky"),
		"failed companies are retried next sweep")
}

func TestSweep_StaleBenchmarkIsNotAFailure(t *testing.T) {
	f := newSweepFixture()
	f.combiner.results["acme"] = okResult("acme", "tech", 70)
	f.benchmarks.err = contracts.ErrStaleBenchmark

	f.tracker.MarkCompanyDirty("acme")
	result, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ScoresUpdated)
	assert.Zero(t, result.SectorsRecomputed)
	assert.Equal(t, contracts.RefreshClean, f.tracker.State("acme"))
}

func TestSweep_SharedSectorRecomputedOnce(t *testing.T) {
	f := newSweepFixture()
	f.combiner.results["acme"] = okResult("acme", "tech", 70)
	f.combiner.results["globex"] = okResult("globex", "tech", 50)

	f.tracker.MarkCompanyDirty("acme")
	f.tracker.MarkCompanyDirty("globex")
	result, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ScoresUpdated)
	assert.Equal(t, 1, result.SectorsRecomputed)

	bench := f.benchmarks.saved["tech"]
	assert.Equal(t, 2, bench.PeerCount)
}

func TestSweep_PortfolioFanOutDeduplicated(t *testing.T) {
	f := newSweepFixture()
	f.combiner.results["acme"] = okResult("acme", "tech", 70)
	f.combiner.results["globex"] = okResult("globex", "energy", 50)
	// Both companies sit in the same portfolio
	f.portfolios.byCompany["acme"] = []string{"core"}
	f.portfolios.byCompany["globex"] = []string{"core"}

	f.tracker.MarkCompanyDirty("acme")
	f.tracker.MarkCompanyDirty("globex")
	_, err := f.orch.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"core"}, f.aggregator.calls)
}

func TestMarkAllDirty(t *testing.T) {
	f := newSweepFixture()
	f.companies.companies["acme"] = contracts.Company{ID: "acme", SectorID: "tech"}
	f.companies.companies["globex"] = contracts.Company{ID: "globex", SectorID: "energy"}

	n, err := f.orch.MarkAllDirty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.tracker.DirtyCompanies(), 2)
}
