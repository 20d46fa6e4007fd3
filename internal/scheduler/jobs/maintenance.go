package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/pkg/logger"
)

// HistoryPruneJob removes score history rows past the retention window
type HistoryPruneJob struct {
	scores contracts.ScoreRepository
	cfg    *engineconfig.Config
	logger *logger.Logger
}

// NewHistoryPruneJob creates a new history prune job
func NewHistoryPruneJob(scores contracts.ScoreRepository, cfg *engineconfig.Config, log *logger.Logger) *HistoryPruneJob {
	return &HistoryPruneJob{
		scores: scores,
		cfg:    cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *HistoryPruneJob) Name() string {
	return "history_prune"
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *HistoryPruneJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run prunes expired history
func (j *HistoryPruneJob) Run(ctx context.Context) error {
	retention := j.cfg.Refresh.HistoryRetentionDays
	if retention <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retention)
	removed, err := j.scores.PruneHistory(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format("2006-01-02"),
		}).Info("Score history pruned")
	}

	return nil
}
