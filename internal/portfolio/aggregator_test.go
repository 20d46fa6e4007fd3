package portfolio

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/logger"
)

type fakePortfolios struct {
	holdings map[string][]contracts.Holding
}

func (f *fakePortfolios) GetHoldings(_ context.Context, id string) ([]contracts.Holding, error) {
	return f.holdings[id], nil
}

func (f *fakePortfolios) PortfoliosHolding(_ context.Context, companyID string) ([]string, error) {
	var ids []string
	for id, hs := range f.holdings {
		for _, h := range hs {
			if h.CompanyID == companyID {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (f *fakePortfolios) SavePortfolioScore(_ context.Context, _ *contracts.PortfolioScore) error {
	return nil
}

func (f *fakePortfolios) GetPortfolioScore(_ context.Context, id string) (*contracts.PortfolioScore, error) {
	return nil, contracts.ErrNotFound
}

type fakeScores struct {
	scores []contracts.CompanyScore
	reads  int32
	block  chan struct{} // when set, GetCurrentScores waits on it
}

func (f *fakeScores) SaveCompanyScore(_ context.Context, _ *contracts.CompanyScore) error { return nil }

func (f *fakeScores) GetCompanyScore(_ context.Context, id string) (*contracts.CompanyScore, error) {
	for _, s := range f.scores {
		if s.CompanyID == id {
			return &s, nil
		}
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeScores) GetCurrentScores(_ context.Context) ([]contracts.CompanyScore, error) {
	atomic.AddInt32(&f.reads, 1)
	if f.block != nil {
		<-f.block
	}
	return f.scores, nil
}

func (f *fakeScores) GetScoresBySector(_ context.Context, sectorID string) ([]contracts.CompanyScore, error) {
	var out []contracts.CompanyScore
	for _, s := range f.scores {
		if s.SectorID == sectorID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScores) GetScoreHistory(_ context.Context, _ string, _ int) ([]contracts.CompanyScore, error) {
	return nil, nil
}

func (f *fakeScores) PruneHistory(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func score(companyID string, e, s, g, confidence float64) contracts.CompanyScore {
	cfg := engineconfig.Default().Dimensions
	return contracts.CompanyScore{
		CompanyID:  companyID,
		SectorID:   "tech",
		E:          e,
		S:          s,
		G:          g,
		Overall:    cfg.Environmental*e + cfg.Social*s + cfg.Governance*g,
		Confidence: confidence,
		AsOf:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestAggregator(holdings []contracts.Holding, scores []contracts.CompanyScore) *Aggregator {
	return NewAggregator(
		&fakePortfolios{holdings: map[string][]contracts.Holding{"default": holdings}},
		&fakeScores{scores: scores},
		engineconfig.Default(),
		testLogger(),
	)
}

func TestAggregate_FullCoverage(t *testing.T) {
	holdings := []contracts.Holding{
		{PortfolioID: "default", CompanyID: "A", Weight: 0.6},
		{PortfolioID: "default", CompanyID: "B", Weight: 0.4},
	}
	scores := []contracts.CompanyScore{
		score("A", 80, 80, 80, 0.9),
		score("B", 40, 40, 40, 0.5),
	}

	agg := newTestAggregator(holdings, scores)
	result, err := agg.Aggregate(context.Background(), "default")
	require.NoError(t, err)
	require.True(t, result.HasScore())

	assert.Equal(t, contracts.PortfolioStatusFull, result.Status)
	assert.InDelta(t, 0.6*80+0.4*40, result.Score.E, 1e-9)
	assert.InDelta(t, 1.0, result.Score.Coverage, 1e-9)
	assert.InDelta(t, 0.6*0.9+0.4*0.5, result.Score.Confidence, 1e-9)
}

func TestAggregate_CoverageRule(t *testing.T) {
	// 60% of weight in companies without a score: PartialCoverage with
	// coverage 0.4 (threshold 0.5)
	holdings := []contracts.Holding{
		{PortfolioID: "default", CompanyID: "A", Weight: 0.4},
		{PortfolioID: "default", CompanyID: "B", Weight: 0.35},
		{PortfolioID: "default", CompanyID: "C", Weight: 0.25},
	}
	scores := []contracts.CompanyScore{score("A", 70, 60, 50, 0.8)}

	agg := newTestAggregator(holdings, scores)
	result, err := agg.Aggregate(context.Background(), "default")
	require.NoError(t, err)
	require.True(t, result.HasScore(), "partial coverage is a warning-bearing success")

	assert.Equal(t, contracts.PortfolioStatusPartialCoverage, result.Status)
	assert.InDelta(t, 0.4, result.Score.Coverage, 1e-9)
	// The scored holding fully determines the renormalized values
	assert.InDelta(t, 70, result.Score.E, 1e-9)
}

func TestAggregate_ExcludedFromBothSides(t *testing.T) {
	// Excluded holdings leave the renormalized average of the covered
	// ones unchanged
	holdings := []contracts.Holding{
		{PortfolioID: "default", CompanyID: "A", Weight: 0.3},
		{PortfolioID: "default", CompanyID: "B", Weight: 0.3},
		{PortfolioID: "default", CompanyID: "C", Weight: 0.4},
	}
	scores := []contracts.CompanyScore{
		score("A", 90, 90, 90, 1),
		score("B", 30, 30, 30, 1),
	}

	agg := newTestAggregator(holdings, scores)
	result, err := agg.Aggregate(context.Background(), "default")
	require.NoError(t, err)
	require.True(t, result.HasScore())

	// Equal weights among covered: straight mean
	assert.InDelta(t, 60, result.Score.E, 1e-9)
	assert.InDelta(t, 0.6, result.Score.Coverage, 1e-9)
	assert.Equal(t, contracts.PortfolioStatusFull, result.Status)
}

func TestAggregate_NoCoverage(t *testing.T) {
	holdings := []contracts.Holding{
		{PortfolioID: "default", CompanyID: "A", Weight: 1.0},
	}

	agg := newTestAggregator(holdings, nil)
	result, err := agg.Aggregate(context.Background(), "default")
	require.NoError(t, err)

	assert.Equal(t, contracts.PortfolioStatusNoCoverage, result.Status)
	assert.Nil(t, result.Score)
}

func TestAggregate_EmptyPortfolio(t *testing.T) {
	agg := newTestAggregator(nil, nil)
	result, err := agg.Aggregate(context.Background(), "default")
	require.NoError(t, err)

	assert.Equal(t, contracts.PortfolioStatusNoCoverage, result.Status)
}

func TestAggregate_SingleWriterPerPortfolio(t *testing.T) {
	holdings := []contracts.Holding{
		{PortfolioID: "default", CompanyID: "A", Weight: 1.0},
	}
	scores := &fakeScores{
		scores: []contracts.CompanyScore{score("A", 70, 70, 70, 0.9)},
		block:  make(chan struct{}),
	}

	agg := NewAggregator(
		&fakePortfolios{holdings: map[string][]contracts.Holding{"default": holdings}},
		scores,
		engineconfig.Default(),
		testLogger(),
	)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*contracts.AggregateResult, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = agg.Aggregate(context.Background(), "default")
		}(i)
	}

	// Let the goroutines pile up on the in-flight call, then release
	time.Sleep(50 * time.Millisecond)
	close(scores.block)
	wg.Wait()

	// All callers observed the same in-flight computation
	assert.Equal(t, int32(1), atomic.LoadInt32(&scores.reads))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}
