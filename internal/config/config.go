// Package config loads the process configuration: flag defaults overlaid by environment
// variables, then validated before the server starts. Modelled on the teacher's
// CommonServerConfig (flags establish defaults, envconfig.Process overlays the environment,
// Validate checks semantic constraints).
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"

	"github.com/kuberos-io/kuberos/internal/db"
)

// Flag names.
const (
	ListenAddressFlagName  = "listen-address"
	MetricsAddressFlagName = "metrics-address"
	DBHostFlagName         = "db-host"
	DBPortFlagName         = "db-port"
	DBUserFlagName         = "db-user"
	DBPasswordFlagName     = "db-password"
	DBNameFlagName         = "db-name"
	NamespaceFlagName      = "namespace"
	WorkerCountFlagName    = "worker-count"
	EmbeddedWorkerFlagName = "embedded-worker"
)

// Config holds the settings shared by the "serve", "worker" and "migrate" sub-commands.
type Config struct {
	// ListenAddress is the address the HTTP control plane listens on.
	ListenAddress string
	// MetricsAddress is the address the Prometheus /metrics endpoint listens on.
	MetricsAddress string
	// DBHost, DBPort, DBUser, DBPassword and DBName describe the Postgres instance backing
	// the state store, kept as discrete fields rather than a single DSN so each can be
	// overridden independently by the environment, the way the teacher's per-service
	// GetPgConfig helpers are fed.
	DBHost     string `envconfig:"KUBEROS_DB_HOST"`
	DBPort     string `envconfig:"KUBEROS_DB_PORT"`
	DBUser     string `envconfig:"KUBEROS_DB_USER"`
	DBPassword string `envconfig:"KUBEROS_DB_PASSWORD"`
	DBName     string `envconfig:"KUBEROS_DB_NAME"`
	// Namespace is the Kubernetes namespace materialised objects are created in on
	// every target cluster.
	Namespace string
	// WorkerCount is the number of goroutines draining the task queue.
	WorkerCount int
	// EmbeddedWorker starts the worker pool in the same process as the HTTP server.
	EmbeddedWorker bool
}

// AddFlags registers the flags for this configuration on the given command.
func AddFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.StringVar(&cfg.ListenAddress, ListenAddressFlagName, "0.0.0.0:8080", "HTTP control plane listen address")
	flags.StringVar(&cfg.MetricsAddress, MetricsAddressFlagName, "0.0.0.0:9090", "Prometheus metrics listen address")
	flags.StringVar(&cfg.DBHost, DBHostFlagName, "localhost", "Postgres host for the state store")
	flags.StringVar(&cfg.DBPort, DBPortFlagName, "5432", "Postgres port for the state store")
	flags.StringVar(&cfg.DBUser, DBUserFlagName, "kuberos", "Postgres user for the state store")
	flags.StringVar(&cfg.DBPassword, DBPasswordFlagName, "", "Postgres password for the state store")
	flags.StringVar(&cfg.DBName, DBNameFlagName, "kuberos", "Postgres database name for the state store")
	flags.StringVar(&cfg.Namespace, NamespaceFlagName, "ros-default", "Namespace materialised on every target cluster")
	flags.IntVar(&cfg.WorkerCount, WorkerCountFlagName, 4, "Number of goroutines draining the task queue")
	flags.BoolVar(&cfg.EmbeddedWorker, EmbeddedWorkerFlagName, false, "Run the worker pool inside the serve process")
}

// LoadFromEnv overlays values taken from the environment on top of the flag defaults.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("kuberos", c); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}
	return nil
}

// Validate checks that the configuration is semantically usable.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBHost == "" {
		return fmt.Errorf("database host is required (set --%s or KUBEROS_DB_HOST)", DBHostFlagName)
	}
	if c.DBName == "" {
		return fmt.Errorf("database name is required (set --%s or KUBEROS_DB_NAME)", DBNameFlagName)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	return nil
}

// PgConfig renders the discrete database settings as a db.PgConfig for NewPool and
// NewMigrationHandler.
func (c *Config) PgConfig() db.PgConfig {
	return db.PgConfig{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Database: c.DBName,
	}
}
