package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	voteledger "tally/contexts/elections/vote-ledger"
	postgresadapter "tally/contexts/elections/vote-ledger/adapters/postgres"
	sqliteadapter "tally/contexts/elections/vote-ledger/adapters/sqlite"
	"tally/internal/platform/config"
	"tally/internal/platform/db"
	"tally/internal/platform/httpserver"
	"tally/internal/platform/messaging"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	loops    *backgroundLoops
	closeFn  func() error
	logger   *slog.Logger
	shutdown time.Duration
}

type WorkerApp struct {
	loops   *backgroundLoops
	closeFn func() error
	logger  *slog.Logger
}

// backgroundLoops drives the outbox relay and the tally auditor.
type backgroundLoops struct {
	module        voteledger.Module
	pollInterval  time.Duration
	auditInterval time.Duration
	logger        *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	module, closeFn, err := buildModule(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &APIApp{
		server:   httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		loops:    newBackgroundLoops(cfg, module, logger),
		closeFn:  closeFn,
		logger:   logger,
		shutdown: 10 * time.Second,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if cfg.LedgerStore == config.StoreMemory {
		return nil, errors.New("worker requires a durable LEDGER_STORE (postgres or sqlite)")
	}

	module, closeFn, err := buildModule(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		loops:   newBackgroundLoops(cfg, module, logger),
		closeFn: closeFn,
		logger:  logger,
	}, nil
}

// buildModule selects the ledger store and registers the configured
// candidates. Durable stores keep the registry fixed across restarts.
func buildModule(cfg config.Config, logger *slog.Logger) (voteledger.Module, func() error, error) {
	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return voteledger.Module{}, nil, err
	}

	switch cfg.LedgerStore {
	case config.StoreMemory:
		module, err := voteledger.NewInMemoryModule(cfg.Candidates, bus, logger)
		if err != nil {
			return voteledger.Module{}, nil, err
		}
		return module, func() error { return nil }, nil

	case config.StorePostgres:
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return voteledger.Module{}, nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return voteledger.Module{}, nil, err
		}
		if err := repo.RegisterCandidates(ctx, cfg.Candidates); err != nil {
			_ = pg.Close()
			return voteledger.Module{}, nil, err
		}
		return voteledger.NewModule(voteledger.Dependencies{
			Ledger:     repo,
			Outbox:     repo,
			OutboxRepo: repo,
			Publisher:  bus,
			Subscriber: bus,
			Clock:      postgresadapter.SystemClock{},
			IDGen:      postgresadapter.UUIDGenerator{},
			RelayBatch: cfg.OutboxBatchSize,
			Logger:     logger,
		}), pg.Close, nil

	case config.StoreSQLite:
		store, err := sqliteadapter.Open(cfg.SQLitePath)
		if err != nil {
			return voteledger.Module{}, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.RegisterCandidates(ctx, cfg.Candidates); err != nil {
			_ = store.Close()
			return voteledger.Module{}, nil, err
		}
		return voteledger.NewModule(voteledger.Dependencies{
			Ledger:     store,
			Outbox:     store,
			OutboxRepo: store,
			Publisher:  bus,
			Subscriber: bus,
			Clock:      postgresadapter.SystemClock{},
			IDGen:      postgresadapter.UUIDGenerator{},
			RelayBatch: cfg.OutboxBatchSize,
			Logger:     logger,
		}), store.Close, nil
	}
	return voteledger.Module{}, nil, fmt.Errorf("unsupported LEDGER_STORE %q", cfg.LedgerStore)
}

func newBackgroundLoops(cfg config.Config, module voteledger.Module, logger *slog.Logger) *backgroundLoops {
	return &backgroundLoops{
		module:        module,
		pollInterval:  cfg.OutboxPollInterval,
		auditInterval: cfg.AuditInterval,
		logger:        logger,
	}
}

// Run stops when ctx is cancelled. The ballot consumer is subscribed before the
// first relay tick. Relay failures are retried on the next tick; an audit
// mismatch stops the process.
func (l *backgroundLoops) Run(ctx context.Context) error {
	if err := l.module.Consumer.Start(ctx); err != nil {
		return err
	}

	relayTicker := time.NewTicker(l.pollInterval)
	defer relayTicker.Stop()
	auditTicker := time.NewTicker(l.auditInterval)
	defer auditTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-relayTicker.C:
			if err := l.module.Relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("outbox relay cycle failed",
					"event", "bootstrap_relay_cycle_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		case <-auditTicker.C:
			if err := l.module.Auditor.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		return a.loops.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdown)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.loops.pollInterval.String(),
		"audit_interval", w.loops.auditInterval.String(),
	)
	if err := w.loops.module.Auditor.RunOnce(ctx); err != nil {
		return err
	}
	return w.loops.Run(ctx)
}

func (w *WorkerApp) Close() error {
	if w.closeFn != nil {
		return w.closeFn()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
