package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdant/esgengine/internal/api"
	"github.com/verdant/esgengine/internal/api/handlers"
	"github.com/verdant/esgengine/internal/scheduler"
	"github.com/verdant/esgengine/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server with the websocket update feed.

Endpoints:
  GET  /health                          - Health check
  GET  /api/companies                   - List companies
  POST /api/companies                   - Register a company
  GET  /api/companies/{id}/score        - Current combined score
  GET  /api/companies/{id}/score/history- Score history
  GET  /api/companies/{id}/documents    - Ingested documents
  GET  /api/companies/{id}/benchmark    - Sector comparison
  POST /api/documents                   - Submit a scored document
  GET  /api/sectors/{id}/benchmark      - Sector benchmark
  GET  /api/portfolios/{id}/holdings    - Holdings snapshot
  PUT  /api/portfolios/{id}/holdings    - Replace holdings
  GET  /api/portfolios/{id}/score       - Stored portfolio score
  POST /api/portfolios/{id}/aggregate   - Recompute a portfolio
  POST /api/refresh                     - Sweep dirty companies
  POST /api/refresh/all                 - Recompute everything
  POST /api/ingest                      - Run the ingest pipeline
  GET  /ws/updates                      - Live update feed

Example:
  go run ./cmd/esg api
  go run ./cmd/esg api --port 8070 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT env)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "run scheduled jobs in-process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	companyHandler := handlers.NewCompanyHandler(a.registry, a.registry, a.scores, a.store, a.cache, a.log)
	documentHandler := handlers.NewDocumentHandler(a.store, a.log)
	benchmarkHandler := handlers.NewBenchmarkHandler(a.benchmarks, a.scores, a.registry, a.cache, a.log)
	portfolioHandler := handlers.NewPortfolioHandler(a.portfolios, a.portfolios, a.aggregator, a.cache, a.log)
	adminHandler := handlers.NewAdminHandler(a.orchestrator, nil, a.log)
	if a.pipeline != nil {
		adminHandler = handlers.NewAdminHandler(a.orchestrator, a.pipeline, a.log)
	}

	router := api.NewRouter(
		companyHandler,
		documentHandler,
		benchmarkHandler,
		portfolioHandler,
		adminHandler,
		a.hub,
		a.log,
	)

	server := api.New(a.cfg, a.log, router)

	var sched *scheduler.Scheduler
	if withScheduler {
		sched = scheduler.New(a.log)
		if err := addJobs(sched, a); err != nil {
			return err
		}
		sched.Start()
	}

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.log.Info("Shutdown signal received")

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if a.hub != nil {
		a.hub.Close(ctx)
	}
	return server.Shutdown(ctx)
}

func addJobs(sched *scheduler.Scheduler, a *app) error {
	if err := sched.AddJob(jobs.NewRefreshSweepJob(a.orchestrator, a.log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewHistoryPruneJob(a.scores, a.policy, a.log)); err != nil {
		return err
	}
	if a.pipeline != nil {
		if err := sched.AddJob(jobs.NewNewsIngestJob(a.pipeline, a.log)); err != nil {
			return err
		}
	}
	return nil
}
