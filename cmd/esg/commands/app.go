package commands

import (
	"fmt"

	"github.com/verdant/esgengine/internal/benchmark"
	"github.com/verdant/esgengine/internal/combiner"
	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/internal/docstore"
	"github.com/verdant/esgengine/internal/engineconfig"
	"github.com/verdant/esgengine/internal/external/gdelt"
	"github.com/verdant/esgengine/internal/external/scorerapi"
	"github.com/verdant/esgengine/internal/feed"
	"github.com/verdant/esgengine/internal/ingest"
	"github.com/verdant/esgengine/internal/portfolio"
	"github.com/verdant/esgengine/internal/refresh"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/database"
	"github.com/verdant/esgengine/pkg/logger"
	"github.com/verdant/esgengine/pkg/redis"
)

// app holds the wired engine. Every command assembles the same graph;
// long-running commands add the hub and scheduler on top.
type app struct {
	cfg    *config.Config
	policy *engineconfig.Config
	log    *logger.Logger
	db     *database.DB
	cache  *redis.Cache
	hub    *feed.Hub

	// Storage
	documents  *docstore.Repository
	registry   *docstore.Registry
	scores     *combiner.Repository
	benchmarks *benchmark.Repository
	portfolios *portfolio.Repository

	// Engine
	store        *docstore.Store
	combiner     *combiner.Combiner
	calculator   *benchmark.Calculator
	aggregator   *portfolio.Aggregator
	tracker      *refresh.Tracker
	orchestrator *refresh.Orchestrator
	pipeline     *ingest.Pipeline
}

// newApp loads configuration and wires the engine. withHub enables the
// websocket update feed for server commands.
func newApp(withHub bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	policyPath := cfg.ScoringConfigPath
	if configFile != "" {
		policyPath = configFile
	}
	policy, err := engineconfig.LoadOrDefault(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load scoring policy: %w", err)
	}

	if hash, err := engineconfig.Hash(policy); err == nil {
		log.WithFields(map[string]interface{}{
			"policy": policy.Meta.PolicyID,
			"hash":   hash[:12],
		}).Info("Scoring policy loaded")
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		redisClient = redis.Disabled()
	}
	cache := redis.NewCache(redisClient, "esg")

	a := &app{
		cfg:    cfg,
		policy: policy,
		log:    log,
		db:     db,
		cache:  cache,
	}
	if withHub {
		a.hub = feed.NewHub(log)
	}

	// Storage
	a.documents = docstore.NewRepository(db.Pool)
	a.registry = docstore.NewRegistry(db.Pool)
	a.scores = combiner.NewRepository(db.Pool)
	a.benchmarks = benchmark.NewRepository(db.Pool)
	a.portfolios = portfolio.NewRepository(db.Pool)

	// Engine
	a.tracker = refresh.NewTracker()
	a.store = docstore.NewStore(a.documents, a.tracker, log)
	a.combiner = combiner.New(a.store, a.registry, policy, log)
	a.calculator = benchmark.NewCalculator(policy, log)
	a.aggregator = portfolio.NewAggregator(a.portfolios, a.scores, policy, log)
	a.orchestrator = refresh.NewOrchestrator(
		a.tracker,
		a.combiner,
		a.scores,
		a.registry,
		a.benchmarks,
		a.calculator,
		a.portfolios,
		a.aggregator,
		policy,
		log,
	).WithObserver(feed.NewNotifier(a.hub, cache, log))

	// Ingestion
	var sources []contracts.DocumentSource
	if cfg.GDELT.BaseURL != "" {
		sources = append(sources, gdelt.NewClient(cfg.GDELT, log))
	}
	if cfg.Scorer.BaseURL != "" && len(sources) > 0 {
		scorer := scorerapi.NewClient(cfg.Scorer, log)
		a.pipeline = ingest.NewPipeline(
			sources,
			scorer,
			a.store,
			a.registry,
			a.documents,
			policy.Refresh.Workers,
			log,
		)
	}

	return a, nil
}

// close releases the app's connections
func (a *app) close() {
	a.db.Close()
}
