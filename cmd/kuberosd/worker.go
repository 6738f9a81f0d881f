package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuberos-io/kuberos/internal/api"
	"github.com/kuberos-io/kuberos/internal/metrics"
	"github.com/kuberos-io/kuberos/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain the task queue standalone, outside the HTTP process",
	Run:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) {
	logger, err := buildLogger(cmd)
	if err != nil {
		fatal(nil, "failed to build logger", err)
	}
	if err := loadConfig(); err != nil {
		fatal(logger, "failed to load configuration", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "failed to build dependencies", err)
	}
	defer d.Close()

	if err := seedClusterSyncTasks(ctx, d); err != nil {
		fatal(logger, "failed to seed cluster sync tasks", err)
	}

	pool := worker.NewPool(d.tasks, logger, cfg.WorkerCount, 2*time.Second, 5*time.Second)
	d.registerHandlers(pool)
	pool.Start(ctx, "kuberosd-worker")
	logger.Info("worker pool started", "concurrency", cfg.WorkerCount)

	gauges, err := metrics.NewDomainGauges(nil)
	if err != nil {
		fatal(logger, "failed to register domain gauges", err)
	}
	go runDomainGaugeLoop(ctx, d, gauges)

	<-ctx.Done()
	pool.Wait()
	logger.Info("worker pool drained")
}

// seedClusterSyncTasks enqueues one cluster_sync task per registered cluster, without checking
// for one already pending, so a freshly started worker (or one recovering after every prior
// task drained) keeps every cluster's inventory refreshing. Re-enqueueing an already-queued
// cluster is harmless - the duplicate pop just finds nothing new to diff - but ListClusters
// only runs once at startup, so steady-state recurrence is carried entirely by each handler
// re-enqueueing itself.
func seedClusterSyncTasks(ctx context.Context, d *deps) error {
	clusters, err := d.fleets.ListClusters(ctx)
	if err != nil {
		return err
	}
	for _, cluster := range clusters {
		if err := d.tasks.Enqueue(ctx, api.ClusterSyncTaskKind, clusterSyncPayload{ClusterID: cluster.ID}, 0); err != nil {
			d.logger.Error("seeding cluster sync task", "cluster", cluster.Name, "error", err)
		}
	}
	return nil
}
