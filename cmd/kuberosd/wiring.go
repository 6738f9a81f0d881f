package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/config"
	"github.com/kuberos-io/kuberos/internal/db"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/registry"
	"github.com/kuberos-io/kuberos/internal/taskq"
)

// deps bundles every repository and external connection the serve and worker sub-commands
// build identically, so handlers written for one are trivially reusable by the other.
type deps struct {
	pool        *pgxpool.Pool
	fleets      *fleet.Repository
	deployments *deployment.Repository
	batchJobs   *batchjob.Repository
	registries  *registry.Repository
	tasks       *taskq.Queue
	executors   *executorCache
	syncers     *syncerCache
	logger      *slog.Logger
	namespace   string
}

// buildDeps dials the state store and wires up every repository on top of the shared pool.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	pool, err := db.NewPool(ctx, cfg.PgConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	fleets := fleet.NewRepository(pool)
	d := &deps{
		pool:        pool,
		fleets:      fleets,
		deployments: deployment.NewRepository(pool),
		batchJobs:   batchjob.NewRepository(pool),
		registries:  registry.NewRepository(pool),
		tasks:       taskq.NewQueue(pool),
		logger:      logger,
		namespace:   cfg.Namespace,
	}
	d.executors = newExecutorCache(fleets, logger)
	d.syncers = newSyncerCache(d.executors, fleets, logger)
	return d, nil
}

func (d *deps) Close() {
	d.pool.Close()
}
