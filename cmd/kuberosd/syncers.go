package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/clustersync"
	"github.com/kuberos-io/kuberos/internal/fleet"
)

// syncerCache holds one clustersync.Syncer per cluster, built once and reused for the life of
// the process. The Syncer's circuit breaker only trips after three consecutive failures -
// rebuilding a fresh Syncer on every cluster_sync task pop would reset that counter every tick
// and the breaker would never open, so the cache (not the task payload) is what owns Syncer
// lifetime.
type syncerCache struct {
	executors *executorCache
	fleets    *fleet.Repository
	logger    *slog.Logger

	mu      sync.Mutex
	syncers map[uuid.UUID]*clustersync.Syncer
}

func newSyncerCache(executors *executorCache, fleets *fleet.Repository, logger *slog.Logger) *syncerCache {
	return &syncerCache{
		executors: executors,
		fleets:    fleets,
		logger:    logger,
		syncers:   make(map[uuid.UUID]*clustersync.Syncer),
	}
}

func (c *syncerCache) forCluster(ctx context.Context, clusterID uuid.UUID) (*clustersync.Syncer, error) {
	c.mu.Lock()
	if s, ok := c.syncers[clusterID]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	executor, err := c.executors.forCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("building executor for cluster %s: %w", clusterID, err)
	}

	syncer := clustersync.NewSyncer(executor, func(id string, available bool) {
		clusterUUID, err := uuid.Parse(id)
		if err != nil {
			c.logger.Error("parsing cluster id from breaker callback", "cluster_id", id, "error", err)
			return
		}
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.fleets.UpdateClusterAvailability(bgCtx, clusterUUID, available, time.Now()); err != nil {
			c.logger.Error("persisting cluster availability change", "cluster_id", id, "error", err)
		}
	})

	c.mu.Lock()
	c.syncers[clusterID] = syncer
	c.mu.Unlock()
	return syncer, nil
}
