package core

import (
	"context"
	"errors"
	"testing"
)

type failingLoader struct{}

func (failingLoader) LoadRaw(context.Context) (map[string]any, error) {
	return nil, errors.New("boom")
}

func TestCfgxConfigProvider_AppliesDefaultsAndValidates(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticLoader(map[string]any{
		"store": map[string]any{"driver": "sqlite", "dsn": "file::memory:"},
	}))

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != StoreDriverSQLite || cfg.Store.DSN != "file::memory:" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Receiver.Port != DefaultReceiverPort {
		t.Fatalf("expected default port, got %d", cfg.Receiver.Port)
	}

	_, err = NewCfgxConfigProvider(StaticLoader(map[string]any{
		"store": map[string]any{"driver": "mongo"},
	})).Load(context.Background(), DefaultConfig())
	if err == nil {
		t.Fatalf("expected validation failure for unknown driver")
	}
}

func TestCfgxConfigProvider_PropagatesLoaderError(t *testing.T) {
	if _, err := NewCfgxConfigProvider(failingLoader{}).Load(context.Background(), DefaultConfig()); err == nil {
		t.Fatalf("expected loader error")
	}
}

func TestGoOptionsResolver_RuntimeZeroValuesDoNotOverride(t *testing.T) {
	defaults := DefaultConfig()
	loaded := DefaultConfig()
	loaded.Log.Level = "debug"
	loaded.Receiver.Async = true

	cfg, err := GoOptionsResolver{}.Resolve(defaults, loaded, Config{Log: LogConfig{Format: "console"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected loaded level, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Fatalf("expected runtime format, got %q", cfg.Log.Format)
	}
	if !cfg.Receiver.Async {
		t.Fatalf("expected async from loaded layer")
	}
}
