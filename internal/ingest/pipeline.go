// Package ingest pulls raw documents from the configured sources, runs
// them through the text scorer, and hands them to the document store.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
)

// cursorStore supplies the incremental fetch cursor per company and
// source type
type cursorStore interface {
	LatestPublishedAt(ctx context.Context, companyID string, sourceType contracts.SourceType) (time.Time, error)
}

// Stats summarizes one pipeline run
type Stats struct {
	Companies   int `json:"companies"`
	Fetched     int `json:"fetched"`
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
	ScoreFailed int `json:"score_failed"`
	FetchFailed int `json:"fetch_failed"`
	Invalid     int `json:"invalid"`
}

// Pipeline fans ingestion out over a bounded worker pool, one company at
// a time. A scorer or fetcher failure skips the affected documents and
// the run continues; partial progress is the normal outcome.
type Pipeline struct {
	sources   []contracts.DocumentSource
	scorer    contracts.TextScorer
	ingester  contracts.DocumentIngester
	companies contracts.CompanyRepository
	cursors   cursorStore
	workers   int
	logger    *logger.Logger
}

// NewPipeline creates a new Pipeline
func NewPipeline(
	sources []contracts.DocumentSource,
	scorer contracts.TextScorer,
	ingester contracts.DocumentIngester,
	companies contracts.CompanyRepository,
	cursors cursorStore,
	workers int,
	log *logger.Logger,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		sources:   sources,
		scorer:    scorer,
		ingester:  ingester,
		companies: companies,
		cursors:   cursors,
		workers:   workers,
		logger:    log.WithField("module", "ingest"),
	}
}

// Run ingests new documents for every registered company
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	companies, err := p.companies.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Companies: len(companies)}
	var mu sync.Mutex

	jobs := make(chan contracts.Company, len(companies))
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for company := range jobs {
				s := p.ingestCompany(ctx, company)
				mu.Lock()
				stats.Fetched += s.Fetched
				stats.Inserted += s.Inserted
				stats.Duplicates += s.Duplicates
				stats.ScoreFailed += s.ScoreFailed
				stats.FetchFailed += s.FetchFailed
				stats.Invalid += s.Invalid
				mu.Unlock()
			}
		}()
	}

	for _, c := range companies {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	p.logger.WithFields(map[string]interface{}{
		"companies":  stats.Companies,
		"fetched":    stats.Fetched,
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
	}).Info("Ingest run finished")

	return stats, nil
}

// RunCompany ingests new documents for one company
func (p *Pipeline) RunCompany(ctx context.Context, companyID string) (*Stats, error) {
	company, err := p.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	stats := p.ingestCompany(ctx, *company)
	stats.Companies = 1
	return stats, nil
}

func (p *Pipeline) ingestCompany(ctx context.Context, company contracts.Company) *Stats {
	stats := &Stats{}

	for _, source := range p.sources {
		since := p.cursor(ctx, company.ID, source.SourceType())

		raw, err := source.Fetch(ctx, company, since)
		if err != nil {
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"company": company.ID,
				"source":  source.SourceType(),
			}).Error("Fetch failed")
			stats.FetchFailed++
			continue
		}
		stats.Fetched += len(raw)

		for _, r := range raw {
			p.ingestOne(ctx, r, stats)
		}
	}

	return stats
}

func (p *Pipeline) ingestOne(ctx context.Context, raw contracts.RawDocument, stats *Stats) {
	score, err := p.scorer.ScoreDocument(ctx, raw.RawText)
	if err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"company": raw.CompanyID,
			"source":  raw.SourceID,
		}).Warn("Scoring failed, document skipped")
		stats.ScoreFailed++
		return
	}

	doc := contracts.Document{
		SourceID:    raw.SourceID,
		CompanyID:   raw.CompanyID,
		SourceType:  raw.SourceType,
		PublishedAt: raw.PublishedAt,
		RawTextRef:  raw.RawTextRef,
		E:           score.E,
		S:           score.S,
		G:           score.G,
		Confidence:  score.Confidence,
	}

	result, err := p.ingester.Ingest(ctx, doc)
	switch {
	case errors.Is(err, contracts.ErrInvalidDocument):
		p.logger.WithError(err).WithField("source", raw.SourceID).Warn("Invalid document rejected")
		stats.Invalid++
	case err != nil:
		p.logger.WithError(err).WithField("source", raw.SourceID).Error("Ingest failed")
		stats.Invalid++
	case result == contracts.IngestDuplicate:
		stats.Duplicates++
	default:
		stats.Inserted++
	}
}

// cursor returns the last stored published_at so sources only fetch
// newer documents. A lookup failure falls back to a full fetch; the
// store's dedupe makes that safe, just slower.
func (p *Pipeline) cursor(ctx context.Context, companyID string, st contracts.SourceType) time.Time {
	if p.cursors == nil {
		return time.Time{}
	}
	since, err := p.cursors.LatestPublishedAt(ctx, companyID, st)
	if err != nil {
		p.logger.WithError(err).WithField("company", companyID).Warn("Cursor lookup failed, full fetch")
		return time.Time{}
	}
	return since
}
