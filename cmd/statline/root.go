// Command statline runs and inspects stat collection jobs.
package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fieldline/statline/config"
	"github.com/fieldline/statline/internal/bootstrap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "statline",
		Short:         "Incremental sports stat collection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCollectCmd())
	root.AddCommand(newStatusCmd())
	return root
}

// Execute runs the CLI. Errors are logged here so main stays trivial.
func Execute() error {
	logger := bootstrap.InitLogger()
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		logger.Error("fatal error", "error", err)
		return err
	}
	return nil
}

// appDeps bundles what every subcommand needs after bootstrap.
type appDeps struct {
	cfg    config.AppConfig
	db     *sql.DB
	redis  redis.UniversalClient
	logger *slog.Logger
}

func (d *appDeps) close(ctx context.Context) {
	if cerr := d.db.Close(); cerr != nil {
		d.logger.ErrorContext(ctx, "close database failed", "error", cerr)
	}
	if cerr := d.redis.Close(); cerr != nil {
		d.logger.ErrorContext(ctx, "close redis failed", "error", cerr)
	}
}

// initApp loads config, connects infrastructure, and runs migrations when
// enabled.
func initApp(ctx context.Context) (*appDeps, error) {
	logger := slog.Default()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, err
	}

	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}
	db, err := bootstrap.ConnectDB(dbCfg)
	if err != nil {
		return nil, err
	}
	redisClient, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
		return nil, err
	}

	deps := &appDeps{cfg: cfg, db: db, redis: redisClient, logger: logger}
	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			deps.close(ctx)
			return nil, err
		}
	}
	return deps, nil
}

func closeMetrics(logger *slog.Logger, metrics interface{ Close() error }) {
	if err := metrics.Close(); err != nil {
		logger.Error("close metrics failed", "error", err)
	}
}
