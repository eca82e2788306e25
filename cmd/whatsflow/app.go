package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	whatsflow "github.com/goliatone/go-whatsflow"
	"github.com/goliatone/go-whatsflow/adapters/gologger"
	"github.com/goliatone/go-whatsflow/client"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/ratelimit"
	sqlstore "github.com/goliatone/go-whatsflow/store/sql"
	"github.com/goliatone/go-whatsflow/transport"
)

// app carries what every subcommand shares: output streams, dotenv files and
// the runtime config layer filled from flags.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	envFiles  []string
	overrides core.Config

	httpClient transport.HTTPDoer
	lookupEnv  func(string) (string, bool)
}

func newApp(stdout io.Writer, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) config(ctx context.Context) (core.Config, error) {
	loader := core.NewEnvLoader(a.envFiles...)
	if a.lookupEnv != nil {
		loader.Lookup = a.lookupEnv
	}
	return core.LoadConfig(ctx, loader, a.overrides)
}

func (a *app) logger(cfg core.Config) (*gologger.ZapLogger, error) {
	return gologger.New(cfg.Log, a.stderr)
}

// session is an API client plus the facade built over it. close releases the
// rate-limit store when one was opened.
type session struct {
	cfg    core.Config
	logger *gologger.ZapLogger
	client *client.Client
	facade *whatsflow.Facade
	close  func()
}

func (a *app) session(ctx context.Context) (*session, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := a.logger(cfg)
	if err != nil {
		return nil, err
	}

	closeFn := func() { _ = logger.Sync() }
	opts := []client.Option{client.WithLogger(logger.Named("client"))}
	if a.httpClient != nil {
		opts = append(opts, client.WithHTTPClient(a.httpClient))
	}
	monitor, release, err := a.rateLimitMonitor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if monitor != nil {
		opts = append(opts, client.WithRateLimitMonitor(monitor))
		closeFn = func() {
			release()
			_ = logger.Sync()
		}
	}

	apiClient, err := client.NewFromConfig(cfg.Client, opts...)
	if err != nil {
		closeFn()
		return nil, err
	}
	facade, err := whatsflow.NewFacade(apiClient)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, client: apiClient, facade: facade, close: closeFn}, nil
}

// rateLimitMonitor persists rate-limit state when a SQL store is configured so
// consecutive invocations share what the API reported.
func (a *app) rateLimitMonitor(
	ctx context.Context,
	cfg core.Config,
	logger *gologger.ZapLogger,
) (*ratelimit.Monitor, func(), error) {
	switch cfg.Store.Driver {
	case core.StoreDriverSQLite, core.StoreDriverPostgres:
	default:
		return nil, func() {}, nil
	}
	persistence, factory, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = 30 * time.Second
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = persistence.Close()
		return nil, nil, err
	}
	cached, err := sqlstore.NewCachedRateLimitStateStore(factory.RateLimitStateStore(), cacheService)
	if err != nil {
		_ = persistence.Close()
		return nil, nil, err
	}
	monitor := ratelimit.NewMonitor(cached, logger.Named("ratelimit"))
	monitor.LowThreshold = cfg.Client.LowRateLimitThreshold
	return monitor, func() { _ = persistence.Close() }, nil
}

func (a *app) printJSON(value any) error {
	encoder := json.NewEncoder(a.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func (a *app) warn(format string, args ...any) {
	_, _ = color.New(color.FgYellow).Fprintf(a.stderr, format+"\n", args...)
}

func (a *app) success(format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(a.stderr, format+"\n", args...)
}

func printError(w io.Writer, err error) {
	rich := core.MapError(err)
	if rich == nil {
		return
	}
	label := color.New(color.FgRed, color.Bold).Sprint("error:")
	if rich.TextCode != "" {
		_, _ = fmt.Fprintf(w, "%s %s (%s)\n", label, rich.Message, rich.TextCode)
		return
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", label, rich.Message)
}
