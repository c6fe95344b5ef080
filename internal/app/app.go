// Package app assembles the ledger components from config.
// Both the API process and ledgerctl build on it so they bill identically.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"inbound-genie/internal/audit"
	"inbound-genie/internal/billing"
	"inbound-genie/internal/calls"
	"inbound-genie/internal/config"
	"inbound-genie/internal/notify"
	"inbound-genie/internal/reporting"
	"inbound-genie/internal/wallet"
	"inbound-genie/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config config.Config

	DB    *sql.DB
	Redis *redis.Client

	Calls      calls.Repository
	Ledger     *wallet.Service
	Biller     *billing.Biller
	Reconciler *billing.Reconciler
	Worker     *billing.Worker
	Reports    *reporting.Service
	Audit      *audit.Service

	closers []io.Closer
}

// New opens Postgres and Redis and builds every component on top of them.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	a := &App{Config: cfg, DB: db}
	a.closers = append(a.closers, db)

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("redis init: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb)

	sink, err := a.buildSink(cfg.Notify, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Calls = calls.NewPostgresRepo(db)
	a.Ledger = wallet.NewService(db)
	a.Biller = billing.NewBiller(a.Ledger, sink)
	a.Reconciler = billing.NewReconciler(a.Calls, a.Ledger, a.Biller).
		WithWorkers(cfg.Billing.ReconcileWorkers).
		WithLocker(billing.NewRedisLocker(rdb), cfg.Billing.ReconcileLockTTL)
	a.Worker = billing.NewWorker(a.Ledger, a.Reconciler, cfg.Billing.ReconcileInterval, cfg.Billing.ReconcileBatch)
	a.Reports = reporting.NewService(a.Calls, a.Ledger)
	a.Audit = audit.NewService(audit.NewPostgresRepo(db))
	return a, nil
}

// buildSink fans low-balance alerts out to every configured sink.
func (a *App) buildSink(cfg config.NotifyConfig, log *slog.Logger) (notify.Sink, error) {
	var sinks notify.Fanout
	if cfg.Has(config.SinkPostgres) {
		sinks = append(sinks, notify.NewPostgresSink(a.DB))
	}
	if cfg.Has(config.SinkKafka) {
		k := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, k)
		a.closers = append(a.closers, k)
	}
	if cfg.Has(config.SinkRabbitMQ) {
		r, err := notify.DialRabbitSink(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq init: %w", err)
		}
		sinks = append(sinks, r)
		a.closers = append(a.closers, r)
	}
	if cfg.Has(config.SinkLog) {
		sinks = append(sinks, notify.LogSink{})
	}
	log.Info("notification sinks configured", "sinks", cfg.Sinks)
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
