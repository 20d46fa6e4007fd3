package feed

import (
	"context"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/logger"
	"github.com/verdant/esgengine/pkg/redis"
)

// Notifier bridges refresh sweeps to the outside: it invalidates cached
// snapshot reads and pushes events to websocket subscribers. Implements
// the refresh observer.
type Notifier struct {
	hub    *Hub
	cache  *redis.Cache
	logger *logger.Logger
}

// NewNotifier creates a new Notifier; hub and cache may each be nil
func NewNotifier(hub *Hub, cache *redis.Cache, log *logger.Logger) *Notifier {
	return &Notifier{
		hub:    hub,
		cache:  cache,
		logger: log.WithField("module", "feed"),
	}
}

// CompanyScoreUpdated invalidates the cached score and notifies clients
func (n *Notifier) CompanyScoreUpdated(companyID string) {
	n.invalidate(redis.CompanyScoreKey(companyID))
	n.broadcast(Event{Type: EventCompanyScore, ID: companyID})
}

// BenchmarkUpdated invalidates the cached benchmark and notifies clients
func (n *Notifier) BenchmarkUpdated(sectorID string) {
	n.invalidate(redis.SectorBenchmarkKey(sectorID))
	n.broadcast(Event{Type: EventBenchmark, ID: sectorID})
}

// PortfolioScoreUpdated invalidates the cached portfolio score and
// notifies clients
func (n *Notifier) PortfolioScoreUpdated(portfolioID string) {
	n.invalidate(redis.PortfolioScoreKey(portfolioID))
	n.broadcast(Event{Type: EventPortfolioScore, ID: portfolioID})
}

// SweepCompleted pushes the sweep summary to clients
func (n *Notifier) SweepCompleted(result *contracts.SweepResult) {
	n.broadcast(Event{Type: EventSweep, Data: result})
}

func (n *Notifier) invalidate(key string) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Delete(context.Background(), key); err != nil {
		n.logger.WithError(err).WithField("key", key).Warn("Cache invalidation failed")
	}
}

func (n *Notifier) broadcast(event Event) {
	if n.hub == nil {
		return
	}
	n.hub.Broadcast(event)
}
