package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

// executorCache lazily builds and caches one k8sexec.Executor per cluster, mirroring
// internal/api.Server's private executorFor - the worker needs the same cache shape since its
// handlers run across many tasks rather than many HTTP requests, but the lifetime rule is
// identical: one executor per cluster, reused for as long as the process runs.
type executorCache struct {
	fleets *fleet.Repository
	logger *slog.Logger

	mu        sync.Mutex
	executors map[uuid.UUID]*k8sexec.Executor
}

func newExecutorCache(fleets *fleet.Repository, logger *slog.Logger) *executorCache {
	return &executorCache{
		fleets:    fleets,
		logger:    logger,
		executors: make(map[uuid.UUID]*k8sexec.Executor),
	}
}

func (c *executorCache) forCluster(ctx context.Context, clusterID uuid.UUID) (*k8sexec.Executor, error) {
	c.mu.Lock()
	if e, ok := c.executors[clusterID]; ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	cluster, err := c.fleets.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("loading cluster %s: %w", clusterID, err)
	}

	executor, err := k8sexec.NewClient().
		SetLogger(c.logger).
		SetCluster(k8sexec.ClusterConfig{
			Name:         cluster.Name,
			EndpointURL:  cluster.EndpointURL,
			ServiceToken: cluster.ServiceToken,
			CACert:       cluster.CACert,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building executor for cluster %s: %w", cluster.Name, err)
	}

	c.mu.Lock()
	c.executors[clusterID] = executor
	c.mu.Unlock()
	return executor, nil
}

// snapshot returns the executor for every currently registered cluster, building any that
// aren't cached yet.
func (c *executorCache) snapshot(ctx context.Context) (map[uuid.UUID]*k8sexec.Executor, error) {
	clusters, err := c.fleets.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}
	out := make(map[uuid.UUID]*k8sexec.Executor, len(clusters))
	for _, cl := range clusters {
		executor, err := c.forCluster(ctx, cl.ID)
		if err != nil {
			return nil, err
		}
		out[cl.ID] = executor
	}
	return out, nil
}
