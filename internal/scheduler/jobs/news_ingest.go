package jobs

import (
	"context"
	"fmt"

	"github.com/verdant/esgengine/internal/ingest"
	"github.com/verdant/esgengine/pkg/logger"
)

// ingestRunner triggers an ingest run
type ingestRunner interface {
	Run(ctx context.Context) (*ingest.Stats, error)
}

// NewsIngestJob pulls fresh documents for every company. New documents
// mark their companies dirty; the sweep job picks those up on its own
// schedule.
type NewsIngestJob struct {
	pipeline ingestRunner
	logger   *logger.Logger
}

// NewNewsIngestJob creates a new ingest job
func NewNewsIngestJob(pipeline ingestRunner, log *logger.Logger) *NewsIngestJob {
	return &NewsIngestJob{
		pipeline: pipeline,
		logger:   log,
	}
}

// Name returns the job name
func (j *NewsIngestJob) Name() string {
	return "news_ingest"
}

// Schedule returns the cron schedule (hourly)
func (j *NewsIngestJob) Schedule() string {
	return "0 0 * * * *"
}

// Run executes one ingest pass
func (j *NewsIngestJob) Run(ctx context.Context) error {
	stats, err := j.pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"fetched":    stats.Fetched,
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
	}).Info("Scheduled ingest completed")

	return nil
}
