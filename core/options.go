package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticLoader serves a fixed raw map, mostly for tests and embedding.
func StaticLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// LoadConfig reads the raw source through cfgx, then layers runtime overrides
// (usually CLI flags) on top with go-options.
func LoadConfig(ctx context.Context, loader RawConfigLoader, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	loaded, err := NewCfgxConfigProvider(loader).Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}
	setInt := func(target map[string]any, key string, value int64) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}

	setString(layer, "service_name", cfg.ServiceName)

	client := map[string]any{}
	setString(client, "api_key", cfg.Client.APIKey)
	setString(client, "base_url", cfg.Client.BaseURL)
	setInt(client, "timeout_seconds", int64(cfg.Client.TimeoutSeconds))
	setInt(client, "low_rate_limit_threshold", int64(cfg.Client.LowRateLimitThreshold))

	receiver := map[string]any{}
	setString(receiver, "secret", cfg.Receiver.Secret)
	setInt(receiver, "port", int64(cfg.Receiver.Port))
	setString(receiver, "path", cfg.Receiver.Path)
	setInt(receiver, "max_body_bytes", cfg.Receiver.MaxBodyBytes)
	if includeZero || cfg.Receiver.Async {
		receiver["async"] = cfg.Receiver.Async
	}

	store := map[string]any{}
	setString(store, "driver", cfg.Store.Driver)
	setString(store, "dsn", cfg.Store.DSN)
	setString(store, "redis_addr", cfg.Store.RedisAddr)
	setInt(store, "delivery_ttl_hours", int64(cfg.Store.DeliveryTTLHours))

	logCfg := map[string]any{}
	setString(logCfg, "level", cfg.Log.Level)
	setString(logCfg, "format", cfg.Log.Format)

	for key, section := range map[string]map[string]any{
		"client":   client,
		"receiver": receiver,
		"store":    store,
		"log":      logCfg,
	} {
		if len(section) > 0 {
			layer[key] = section
		}
	}
	return layer
}
