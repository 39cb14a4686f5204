package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"

	"github.com/simaogato/transferflow-backend/internal/adapter/bank/httpbank"
	bankmemory "github.com/simaogato/transferflow-backend/internal/adapter/bank/memory"
	grpcadapter "github.com/simaogato/transferflow-backend/internal/adapter/grpc"
	"github.com/simaogato/transferflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/transferflow-backend/internal/adapter/repository/mongo"
	"github.com/simaogato/transferflow-backend/internal/adapter/repository/postgres"
	redisrepo "github.com/simaogato/transferflow-backend/internal/adapter/repository/redis"
	"github.com/simaogato/transferflow-backend/internal/config"
	"github.com/simaogato/transferflow-backend/internal/domain"
	"github.com/simaogato/transferflow-backend/internal/host"
	"github.com/simaogato/transferflow-backend/internal/logging"
	"github.com/simaogato/transferflow-backend/internal/usecase/seeder"
	"github.com/simaogato/transferflow-backend/internal/usecase/session"
	"github.com/simaogato/transferflow-backend/internal/usecase/step"
	"github.com/simaogato/transferflow-backend/internal/usecase/transfer"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Start the gRPC server and the recovery sweeper",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Path to a .env file loaded before reading TRANSFERFLOW_* variables",
			Aliases: []string{"e"},
			Value:   config.DotEnvFile,
		},
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "Address to bind the gRPC service, overrides TRANSFERFLOW_GRPC_LISTEN",
			Aliases: []string{"l"},
		},
	},
	Action: serveAction,
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	if listen := cmd.String("listen"); listen != "" {
		cfg.GRPC.Listen = listen
	}

	logger, err := logging.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg, logger)
	defer deps.close(logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	runner, err := grpcadapter.NewRunner(cfg.GRPC.Listen, cfg.GRPC.APIToken,
		grpcadapter.NewServer(deps.service),
		grpcadapter.WithRunnerLogger(logger.With("component", "grpc")),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create gRPC runner: %w", err), 1)
	}

	sweeper, err := host.NewSweeper(deps.service, cfg.Saga.RecoveryInterval, logger.With("component", "sweeper"))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create recovery sweeper: %w", err), 1)
	}

	// Create a list of runnables to manage, order is important
	runnables := []supervisor.Runnable{
		sweeper,
		runner,
	}

	super, err := supervisor.New(
		supervisor.WithRunnables(runnables...),
		supervisor.WithLogHandler(logger.Handler()),
		supervisor.WithContext(ctx),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
	}
	if err := super.Run(); err != nil {
		return cli.Exit(fmt.Errorf("failed to run server: %w", err), 1)
	}

	logger.Info("Server shutdown complete")
	return nil
}

type dependencies struct {
	host    *host.Host
	service *transfer.TransferService
	closers []func(context.Context) error
}

func (d *dependencies) close(logger *slog.Logger) {
	ctx := context.Background()
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			logger.Warn("Failed to close connection", "error", err)
		}
	}
}

// wire builds the ledger, the stores and the use cases selected by cfg.
// Connections opened before a failure are registered on the returned dependencies so they can be closed.
func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	bank, err := newBank(ctx, cfg, logger)
	if err != nil {
		return deps, err
	}

	var mongoDB *mongo.DB
	if cfg.Store.Session == config.StoreMongo || cfg.Store.Checkpoint == config.StoreMongo {
		mongoDB, err = mongo.NewDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return deps, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		deps.closers = append(deps.closers, mongoDB.Close)
	}

	sessions, err := newSessionRepository(ctx, cfg, mongoDB, deps)
	if err != nil {
		return deps, err
	}
	checkpoints, err := newCheckpointRepository(ctx, cfg, mongoDB)
	if err != nil {
		return deps, err
	}
	transfers, err := newTransferRepository(ctx, cfg, deps)
	if err != nil {
		return deps, err
	}

	tracker := session.NewTracker(sessions, logger.With("component", "session"))
	executor := step.NewExecutor(bank, tracker, step.WithLogger(logger.With("component", "step")))

	deps.host, err = host.New(executor, checkpoints,
		host.WithLogger(logger.With("component", "host")),
		host.WithRetryPolicy(host.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			WaitMin:        cfg.Retry.WaitMin,
			WaitMax:        cfg.Retry.WaitMax,
			BackOffEnabled: cfg.Retry.BackOffEnabled,
			MaxJitter:      cfg.Retry.MaxJitter,
		}),
		host.WithCompensationTimeout(cfg.Saga.CompensationTimeout),
	)
	if err != nil {
		return deps, fmt.Errorf("failed to create execution host: %w", err)
	}

	deps.service = transfer.NewTransferService(deps.host, tracker, transfers, logger.With("component", "transfer"))
	return deps, nil
}

func newBank(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.BankingService, error) {
	switch cfg.Bank.Mode {
	case config.BankModeHTTP:
		client, err := httpbank.New(httpbank.Config{
			URL:     cfg.Bank.URL,
			Timeout: cfg.Bank.Timeout,
			Breaker: httpbank.BreakerConfig{
				MaxRequests:         cfg.Bank.Breaker.MaxRequests,
				Interval:            cfg.Bank.Breaker.Interval,
				Timeout:             cfg.Bank.Breaker.Timeout,
				ConsecutiveFailures: cfg.Bank.Breaker.ConsecutiveFailures,
			},
		}, logger.With("component", "bank"))
		if err != nil {
			return nil, fmt.Errorf("failed to create bank client: %w", err)
		}
		return client, nil
	default:
		ledger := bankmemory.NewLedger()
		accountSeeder := seeder.NewAccountSeeder(ledger, seeder.DefaultAccounts(), logger.With("component", "seeder"))
		if err := accountSeeder.Seed(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
		}
		return ledger, nil
	}
}

func newSessionRepository(ctx context.Context, cfg *config.Config, mongoDB *mongo.DB, deps *dependencies) (domain.SessionRepository, error) {
	switch cfg.Store.Session {
	case config.StoreMongo:
		repo := mongo.NewSessionRepository(mongoDB)
		if err := repo.EnsureIndexes(ctx, mongoDB); err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		deps.closers = append(deps.closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisrepo.NewSessionRepository(client, cfg.Redis.SessionTTL), nil
	default:
		return memory.NewSessionRepository(), nil
	}
}

func newCheckpointRepository(ctx context.Context, cfg *config.Config, mongoDB *mongo.DB) (domain.CheckpointRepository, error) {
	if cfg.Store.Checkpoint != config.StoreMongo {
		return memory.NewCheckpointRepository(), nil
	}
	repo := mongo.NewCheckpointRepository(mongoDB)
	if err := repo.EnsureIndexes(ctx, mongoDB); err != nil {
		return nil, err
	}
	return repo, nil
}

func newTransferRepository(ctx context.Context, cfg *config.Config, deps *dependencies) (domain.TransferRepository, error) {
	if cfg.Store.Transfer != config.StorePostgres {
		return memory.NewTransferRepository(), nil
	}
	db, err := postgres.NewDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	deps.closers = append(deps.closers, func(context.Context) error { return db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create transfers schema: %w", err)
	}
	return postgres.NewTransferRepository(db), nil
}
