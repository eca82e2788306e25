package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-whatsflow/adapters/gojob"
	"github.com/goliatone/go-whatsflow/adapters/gologger"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/inbound"
	"github.com/goliatone/go-whatsflow/receiver"
	redisstore "github.com/goliatone/go-whatsflow/store/redis"
	sqlstore "github.com/goliatone/go-whatsflow/store/sql"
	"github.com/goliatone/go-whatsflow/webhooks"
	"github.com/spf13/cobra"
)

const deliverySweepInterval = time.Hour

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&a.overrides.Receiver.Port, "port", 0, "listen port (overrides PORT)")
	flags.StringVar(&a.overrides.Receiver.Path, "path", "", "webhook path")
	flags.BoolVar(&a.overrides.Receiver.Async, "async", false, "acknowledge first and process deliveries on a worker")
	flags.StringVar(&a.overrides.Store.Driver, "store", "", "delivery ledger: memory, sqlite, postgres or redis")
	flags.StringVar(&a.overrides.Store.DSN, "dsn", "", "database DSN for sqlite or postgres")
	flags.StringVar(&a.overrides.Store.RedisAddr, "redis-addr", "", "redis address for the redis ledger")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}
	if err := cfg.ValidateReceiver(); err != nil {
		return err
	}
	logger, err := a.logger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	dispatcher := inbound.NewDispatcher(inbound.LoggingHandlers(logger.Named("events")), logger.Named("dispatcher"))
	opts := []receiver.Option{
		receiver.WithLedger(ledger),
		receiver.WithLogger(logger.Named("receiver")),
	}

	if cfg.Receiver.Async {
		workerLogger, jobLogger := gologger.NewProvider(logger).JobLoggers("worker")
		jobs := gojob.NewMemoryQueue(0)
		jobs.Logger = jobLogger
		defer jobs.Close()

		worker := gojob.NewEventWorker(jobs, dispatcher, workerLogger)
		worker.Ledger = ledger
		worker.Hook = gojob.LoggingHook{Logger: workerLogger}
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("event worker stopped", "error", err.Error())
			}
		}()
		opts = append(opts, receiver.WithEnqueuer(gojob.NewEventEnqueuer(jobs)))
	}

	server, err := receiver.New(receiver.ConfigFromCore(cfg.Receiver), dispatcher, opts...)
	if err != nil {
		return err
	}
	logger.Info("webhook receiver starting",
		"addr", server.Config().Addr(),
		"path", server.Config().Path,
		"store", cfg.Store.Driver,
		"async", cfg.Receiver.Async,
	)
	a.success("Webhook receiver listening on %s%s", server.Config().Addr(), server.Config().Path)
	return server.Run(ctx)
}

// openLedger picks the delivery ledger for the configured store driver.
func openLedger(ctx context.Context, cfg core.Config, logger *gologger.ZapLogger) (webhooks.DeliveryLedger, func(), error) {
	ttl := time.Duration(cfg.Store.DeliveryTTLHours) * time.Hour
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "", core.StoreDriverMemory:
		ledger := webhooks.NewMemoryLedger()
		if ttl > 0 {
			ledger.TTL = ttl
		}
		return ledger, func() {}, nil
	case core.StoreDriverSQLite, core.StoreDriverPostgres:
		client, factory, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := factory.WebhookDeliveryStore()
		if ttl > 0 {
			store.TTL = ttl
		}
		sweepCtx, cancel := context.WithCancel(ctx)
		go sweepDeliveries(sweepCtx, store, logger)
		return store, func() {
			cancel()
			_ = client.Close()
		}, nil
	case core.StoreDriverRedis:
		client, err := redisstore.Dial(ctx, cfg.Store.RedisAddr, "")
		if err != nil {
			return nil, nil, err
		}
		ledger, err := redisstore.NewDeliveryLedger(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if ttl > 0 {
			ledger.TTL = ttl
		}
		return ledger, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("whatsflow: unsupported store driver %q", cfg.Store.Driver)
	}
}

func sweepDeliveries(ctx context.Context, store *sqlstore.WebhookDeliveryStore, logger *gologger.ZapLogger) {
	ticker := time.NewTicker(deliverySweepInterval)
	defer ticker.Stop()
	for {
		if removed, err := store.Purge(ctx); err != nil {
			if ctx.Err() == nil {
				logger.Warn("delivery ledger sweep failed", "error", err.Error())
			}
		} else if removed > 0 {
			logger.Debug("delivery ledger swept", "removed", removed)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
