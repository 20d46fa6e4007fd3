package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/ingest"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/logger"
	"github.com/verdant/esgengine/pkg/redis"
)

type fakeCompanies struct {
	companies map[string]contracts.Company
	upserted  []contracts.Company
}

func (f *fakeCompanies) UpsertCompany(_ context.Context, c *contracts.Company) error {
	f.upserted = append(f.upserted, *c)
	return nil
}

func (f *fakeCompanies) GetCompany(_ context.Context, id string) (*contracts.Company, error) {
	if c, ok := f.companies[id]; ok {
		return &c, nil
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeCompanies) GetCompaniesBySector(_ context.Context, _ string) ([]contracts.Company, error) {
	return nil, nil
}

func (f *fakeCompanies) ListCompanies(_ context.Context) ([]contracts.Company, error) {
	var out []contracts.Company
	for _, c := range f.companies {
		out = append(out, c)
	}
	return out, nil
}

type fakeScores struct {
	scores  map[string]contracts.CompanyScore
	history []contracts.CompanyScore
}

func (f *fakeScores) SaveCompanyScore(_ context.Context, _ *contracts.CompanyScore) error {
	return nil
}

func (f *fakeScores) GetCompanyScore(_ context.Context, id string) (*contracts.CompanyScore, error) {
	if s, ok := f.scores[id]; ok {
		return &s, nil
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeScores) GetCurrentScores(_ context.Context) ([]contracts.CompanyScore, error) {
	return nil, nil
}

func (f *fakeScores) GetScoresBySector(_ context.Context, _ string) ([]contracts.CompanyScore, error) {
	return nil, nil
}

func (f *fakeScores) GetScoreHistory(_ context.Context, _ string, limit int) ([]contracts.CompanyScore, error) {
	if limit > len(f.history) {
		limit = len(f.history)
	}
	return f.history[:limit], nil
}

func (f *fakeScores) PruneHistory(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type fakeDocuments struct {
	docs      []contracts.Document
	lastSince *time.Time
}

func (f *fakeDocuments) DocumentsFor(_ context.Context, _ string, since *time.Time) ([]contracts.Document, error) {
	f.lastSince = since
	return f.docs, nil
}

type fakeBenchmarks struct {
	benchmarks map[string]contracts.SectorBenchmark
}

func (f *fakeBenchmarks) SaveBenchmark(_ context.Context, _ *contracts.SectorBenchmark) error {
	return nil
}

func (f *fakeBenchmarks) GetBenchmark(_ context.Context, sectorID string) (*contracts.SectorBenchmark, error) {
	if b, ok := f.benchmarks[sectorID]; ok {
		return &b, nil
	}
	return nil, contracts.ErrNotFound
}

type fakePortfolios struct {
	scores   map[string]contracts.PortfolioScore
	saved    []contracts.PortfolioScore
	holdings []contracts.Holding
}

func (f *fakePortfolios) GetHoldings(_ context.Context, _ string) ([]contracts.Holding, error) {
	return f.holdings, nil
}

func (f *fakePortfolios) ReplaceHoldings(_ context.Context, portfolioID string, holdings []contracts.Holding) error {
	total := contracts.TotalWeight(holdings)
	if len(holdings) > 0 && (total < 0.999 || total > 1.001) {
		return contracts.ErrInvalidHoldings
	}
	f.holdings = holdings
	return nil
}

func (f *fakePortfolios) PortfoliosHolding(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (f *fakePortfolios) SavePortfolioScore(_ context.Context, s *contracts.PortfolioScore) error {
	f.saved = append(f.saved, *s)
	return nil
}

func (f *fakePortfolios) GetPortfolioScore(_ context.Context, id string) (*contracts.PortfolioScore, error) {
	if s, ok := f.scores[id]; ok {
		return &s, nil
	}
	return nil, contracts.ErrNotFound
}

type fakeAggregator struct {
	result *contracts.AggregateResult
}

func (f *fakeAggregator) Aggregate(_ context.Context, _ string) (*contracts.AggregateResult, error) {
	return f.result, nil
}

type fakeSweeper struct {
	result *contracts.SweepResult
	marked int
}

func (f *fakeSweeper) Sweep(_ context.Context) (*contracts.SweepResult, error) {
	return f.result, nil
}

func (f *fakeSweeper) MarkAllDirty(_ context.Context) (int, error) {
	return f.marked, nil
}

type fakeIngestRunner struct {
	stats *ingest.Stats
}

func (f *fakeIngestRunner) Run(_ context.Context) (*ingest.Stats, error) {
	return f.stats, nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func testCache() *redis.Cache {
	return redis.NewCache(redis.Disabled(), "test")
}

func doRequest(t *testing.T, router *mux.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCompanyHandler_GetScore(t *testing.T) {
	companies := &fakeCompanies{companies: map[string]contracts.Company{
		"acme":  {ID: "acme", Name: "Acme", SectorID: "tech"},
		"fresh": {ID: "fresh", Name: "Fresh", SectorID: "tech"},
	}}
	scores := &fakeScores{scores: map[string]contracts.CompanyScore{
		"acme": {CompanyID: "acme", SectorID: "tech", Overall: 71.5, Confidence: 0.8},
	}}

	h := NewCompanyHandler(companies, companies, scores, &fakeDocuments{}, testCache(), testLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/companies/{id}/score", h.GetScore).Methods("GET")

	t.Run("with score", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/companies/acme/score")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Status string                 `json:"status"`
			Score  contracts.CompanyScore `json:"score"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, 71.5, body.Score.Overall)
	})

	t.Run("known company without evidence", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/companies/fresh/score")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(contracts.ScoreStatusInsufficientData), body["status"])
	})

	t.Run("unknown company", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/companies/ghost/score")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCompanyHandler_GetDocuments(t *testing.T) {
	docs := &fakeDocuments{docs: []contracts.Document{
		{SourceID: "n1", CompanyID: "acme", SourceType: contracts.SourceNews},
	}}
	h := NewCompanyHandler(&fakeCompanies{}, &fakeCompanies{}, &fakeScores{}, docs, testCache(), testLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/companies/{id}/documents", h.GetDocuments).Methods("GET")

	rec := doRequest(t, router, http.MethodGet, "/api/companies/acme/documents?since=2026-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, docs.lastSince)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *docs.lastSince)

	rec = doRequest(t, router, http.MethodGet, "/api/companies/acme/documents?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBenchmarkHandler_GetComparison(t *testing.T) {
	scores := &fakeScores{scores: map[string]contracts.CompanyScore{
		"acme": {CompanyID: "acme", SectorID: "tech", Overall: 70},
	}}
	benchmarks := &fakeBenchmarks{benchmarks: map[string]contracts.SectorBenchmark{
		"tech": {
			SectorID:    "tech",
			Percentiles: map[string]float64{"acme": 80},
			Mean:        62.5,
			PeerCount:   4,
		},
	}}

	h := NewBenchmarkHandler(benchmarks, scores, &fakeCompanies{}, testCache(), testLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/companies/{id}/benchmark", h.GetComparison).Methods("GET")

	rec := doRequest(t, router, http.MethodGet, "/api/companies/acme/benchmark")
	require.Equal(t, http.StatusOK, rec.Code)

	var body contracts.BenchmarkComparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 80.0, body.Percentile)
	assert.InDelta(t, 7.5, body.DiffFromMean, 1e-9)

	rec = doRequest(t, router, http.MethodGet, "/api/companies/ghost/benchmark")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioHandler_Aggregate(t *testing.T) {
	portfolios := &fakePortfolios{}
	agg := &fakeAggregator{result: &contracts.AggregateResult{
		Status: contracts.PortfolioStatusFull,
		Score:  &contracts.PortfolioScore{PortfolioID: "growth", Overall: 66},
	}}

	h := NewPortfolioHandler(portfolios, portfolios, agg, testCache(), testLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/portfolios/{id}/aggregate", h.Aggregate).Methods("POST")

	rec := doRequest(t, router, http.MethodPost, "/api/portfolios/growth/aggregate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, portfolios.saved, 1)
	assert.Equal(t, 66.0, portfolios.saved[0].Overall)
}

func TestPortfolioHandler_AggregateNoCoverageNotSaved(t *testing.T) {
	portfolios := &fakePortfolios{}
	agg := &fakeAggregator{result: &contracts.AggregateResult{
		Status: contracts.PortfolioStatusNoCoverage,
	}}

	h := NewPortfolioHandler(portfolios, portfolios, agg, testCache(), testLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/portfolios/{id}/aggregate", h.Aggregate).Methods("POST")

	rec := doRequest(t, router, http.MethodPost, "/api/portfolios/empty/aggregate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, portfolios.saved)

	var body contracts.AggregateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, contracts.PortfolioStatusNoCoverage, body.Status)
}

func TestPortfolioHandler_SetHoldings(t *testing.T) {
	portfolios := &fakePortfolios{}
	h := NewPortfolioHandler(portfolios, portfolios, &fakeAggregator{}, testCache(), testLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/portfolios/{id}/holdings", h.SetHoldings).Methods("PUT")

	body := `[{"company_id": "acme", "weight": 0.6}, {"company_id": "beta", "weight": 0.4}]`
	req := httptest.NewRequest(http.MethodPut, "/api/portfolios/growth/holdings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, portfolios.holdings, 2)
	assert.Equal(t, "acme", portfolios.holdings[0].CompanyID)

	// Weights that do not sum to 1 are the caller's problem
	body = `[{"company_id": "acme", "weight": 0.6}]`
	req = httptest.NewRequest(http.MethodPut, "/api/portfolios/growth/holdings", strings.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanyHandler_Register(t *testing.T) {
	companies := &fakeCompanies{}
	h := NewCompanyHandler(companies, companies, &fakeScores{}, &fakeDocuments{}, testCache(), testLogger())

	body := `{"id": "acme", "name": "Acme Corp", "sector_id": "tech"}`
	req := httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, companies.upserted, 1)
	assert.Equal(t, "tech", companies.upserted[0].SectorID)

	req = httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader(`{"name": "No ID"}`))
	rec = httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeIngester struct {
	result contracts.IngestResult
	docs   []contracts.Document
}

func (f *fakeIngester) Ingest(_ context.Context, doc contracts.Document) (contracts.IngestResult, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	f.docs = append(f.docs, doc)
	return f.result, nil
}

func TestDocumentHandler_Ingest(t *testing.T) {
	ingester := &fakeIngester{result: contracts.IngestInserted}
	h := NewDocumentHandler(ingester, testLogger())

	body := `{
		"source_id": "sec-10k-2026",
		"company_id": "acme",
		"source_type": "filing",
		"published_at": "2026-03-15T00:00:00Z",
		"e": 70, "s": 60, "g": 80,
		"confidence": 0.9
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ingester.docs, 1)
	assert.Equal(t, "acme", ingester.docs[0].CompanyID)
}

func TestDocumentHandler_IngestInvalid(t *testing.T) {
	h := NewDocumentHandler(&fakeIngester{}, testLogger())

	body := `{"source_id": "x", "company_id": "acme", "source_type": "rumor", "published_at": "2026-03-15T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandler_Refresh(t *testing.T) {
	sw := &fakeSweeper{result: &contracts.SweepResult{CompaniesSwept: 3, ScoresUpdated: 2, NoScore: 1}}
	h := NewAdminHandler(sw, &fakeIngestRunner{stats: &ingest.Stats{Inserted: 5}}, testLogger())

	router := mux.NewRouter()
	router.HandleFunc("/api/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/api/ingest", h.Ingest).Methods("POST")

	rec := doRequest(t, router, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var sweep contracts.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sweep))
	assert.Equal(t, 3, sweep.CompaniesSwept)

	rec = doRequest(t, router, http.MethodPost, "/api/ingest")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats ingest.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.Inserted)
}
