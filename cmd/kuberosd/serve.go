package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kuberos-io/kuberos/internal/api"
	"github.com/kuberos-io/kuberos/internal/metrics"
	"github.com/kuberos-io/kuberos/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kuberos HTTP control plane",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
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

	handler, err := api.NewServer(api.Dependencies{
		Fleets:      d.fleets,
		Deployments: d.deployments,
		BatchJobs:   d.batchJobs,
		Registries:  d.registries,
		Tasks:       d.tasks,
		Logger:      logger,
	})
	if err != nil {
		fatal(logger, "failed to build HTTP control plane", err)
	}

	apiServer := &http.Server{Addr: cfg.ListenAddress, Handler: handler}
	metricsServer := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server stopped unexpectedly", "error", err)
		}
	}()
	go func() {
		logger.Info("serving metrics", "address", cfg.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped unexpectedly", "error", err)
		}
	}()

	var pool *worker.Pool
	if cfg.EmbeddedWorker {
		pool = worker.NewPool(d.tasks, logger, cfg.WorkerCount, 2*time.Second, 5*time.Second)
		d.registerHandlers(pool)
		pool.Start(ctx, "kuberosd-embedded")
		logger.Info("embedded worker pool started", "concurrency", cfg.WorkerCount)

		gauges, err := metrics.NewDomainGauges(nil)
		if err != nil {
			fatal(logger, "failed to register domain gauges", err)
		}
		go runDomainGaugeLoop(ctx, d, gauges)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down api server", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down metrics server", "error", err)
	}
	if pool != nil {
		pool.Wait()
	}
	logger.Info("shutdown complete")
}
