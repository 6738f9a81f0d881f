package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

// PgConfig is the set of parameters needed to dial the Postgres instance backing this
// service. Modelled on the teacher's db.PgConfig.
type PgConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// ConnString renders cfg as a libpq connection string.
func (cfg PgConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// NewPool dials a concurrency-safe pgxpool.Pool for cfg, routing pgx's warning- and error-level
// trace output through slog and
// pinging once before returning so start-up failures surface immediately.
func NewPool(ctx context.Context, cfg PgConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   slogTracer{logger: logger},
		LogLevel: tracelog.LogLevelWarn,
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool established", "host", cfg.Host, "database", cfg.Database)
	return pool, nil
}

// slogTracer adapts pgx's tracelog.Logger interface onto a slog.Logger, replacing the
// teacher's custom attribute-by-attribute logger with the builder this project already uses
// for every other component.
type slogTracer struct {
	logger *slog.Logger
}

func (t slogTracer) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]any, 0, len(data)*2)
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	switch level {
	case tracelog.LogLevelError:
		t.logger.ErrorContext(ctx, msg, attrs...)
	case tracelog.LogLevelWarn:
		t.logger.WarnContext(ctx, msg, attrs...)
	default:
		t.logger.DebugContext(ctx, msg, attrs...)
	}
}
