// Package jobs holds the scheduled jobs wired into the scheduler.
package jobs

import (
	"context"
	"fmt"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
)

// sweeper is the refresh capability the sweep job drives
type sweeper interface {
	Sweep(ctx context.Context) (*contracts.SweepResult, error)
}

// RefreshSweepJob periodically recomputes dirty company scores
type RefreshSweepJob struct {
	sweeper sweeper
	logger  *logger.Logger
}

// NewRefreshSweepJob creates a new refresh sweep job
func NewRefreshSweepJob(sw sweeper, log *logger.Logger) *RefreshSweepJob {
	return &RefreshSweepJob{
		sweeper: sw,
		logger:  log,
	}
}

// Name returns the job name
func (j *RefreshSweepJob) Name() string {
	return "refresh_sweep"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *RefreshSweepJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes one dirty sweep
func (j *RefreshSweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("refresh sweep: %w", err)
	}

	if result.CompaniesSwept > 0 {
		j.logger.WithFields(map[string]interface{}{
			"swept":   result.CompaniesSwept,
			"updated": result.ScoresUpdated,
			"failed":  result.Failed,
		}).Info("Scheduled sweep completed")
	}

	return nil
}
