package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fieldline/statline/config"
	"github.com/fieldline/statline/internal/data"
	"github.com/fieldline/statline/internal/domain/model"
	"github.com/fieldline/statline/internal/observability/statsd"
	"github.com/fieldline/statline/internal/parser"
	"github.com/fieldline/statline/internal/service"
	"github.com/fieldline/statline/internal/source"
)

// feedForJobType maps a job type to its feed path segment on the remote API.
func feedForJobType(t model.JobType) string {
	if t == model.JobTypeRoster {
		return "rosters"
	}
	return "statlines"
}

// Collector bundles the assembled engine and the handles the CLI needs.
type Collector struct {
	Orchestrator *service.Orchestrator
	Ledger       *data.LedgerRepo
	Checkpoints  *data.CheckpointRepo
	Metrics      *statsd.Client
}

// NewCollector assembles the collection engine for one job type.
func NewCollector(
	cfg config.AppConfig,
	jobType model.JobType,
	db *sql.DB,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) (*Collector, error) {
	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.StatsdEnabled,
		Address: cfg.Observability.StatsdAddress,
		Prefix:  cfg.Observability.StatsdPrefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init statsd: %w", err)
	}

	ledger := data.NewLedgerRepo(db, data.LedgerRepoConfig{Logger: logger})
	records := data.NewRecordRepo(db, data.RecordRepoConfig{Logger: logger})
	checkpoints := data.NewCheckpointRepo(redisClient)

	feed, err := source.NewClient(source.ClientOptions{
		BaseURL:        cfg.Source.BaseURL,
		Feed:           feedForJobType(jobType),
		TokenURL:       cfg.Source.TokenURL,
		ClientID:       cfg.Source.ClientID,
		ClientSecret:   cfg.Source.ClientSecret,
		RequestTimeout: cfg.Source.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init source client: %w", err)
	}

	pacer := service.NewPacer(service.PacerOptions{
		MinSpacing:  cfg.Source.MinSpacing,
		MaxRetries:  cfg.Source.MaxRetries,
		BackoffBase: cfg.Source.BackoffBase,
		BackoffCap:  cfg.Source.BackoffCap,
		Refresher:   feed,
		Logger:      logger,
	})

	gap, err := service.NewGapService(service.GapServiceOptions{
		Store:  records,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init gap service: %w", err)
	}

	pool, err := service.NewPool(service.PoolOptions{
		Source:         feed,
		Parser:         parser.NewFeedParser(),
		Store:          records,
		Pacer:          pacer,
		Logger:         logger,
		Metrics:        metrics,
		Stagger:        cfg.Collector.WorkerStagger,
		StoreRetries:   cfg.Collector.StoreRetries,
		StoreRetryable: data.IsRetryableStoreError,
		UnitTimeout:    cfg.Collector.UnitTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}

	orchestrator, err := service.NewOrchestrator(service.OrchestratorOptions{
		Ledger:                ledger,
		Checkpoints:           checkpoints,
		Gap:                   gap,
		Store:                 records,
		Pool:                  pool,
		Logger:                logger,
		Metrics:               metrics,
		SuccessRatio:          cfg.Collector.SuccessRatio,
		ProgressFlushInterval: cfg.Collector.ProgressFlushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	return &Collector{
		Orchestrator: orchestrator,
		Ledger:       ledger,
		Checkpoints:  checkpoints,
		Metrics:      metrics,
	}, nil
}
