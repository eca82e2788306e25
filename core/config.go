package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL          = "http://localhost:2152/api/public/v1"
	DefaultReceiverPort     = 3000
	DefaultWebhookPath      = "/webhooks/whatsflow"
	DefaultLowRateThreshold = 10
	DefaultTimeoutSeconds   = 30
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

type ClientConfig struct {
	APIKey                string `koanf:"api_key" mapstructure:"api_key"`
	BaseURL               string `koanf:"base_url" mapstructure:"base_url"`
	TimeoutSeconds        int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	LowRateLimitThreshold int    `koanf:"low_rate_limit_threshold" mapstructure:"low_rate_limit_threshold"`
}

func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ReceiverConfig struct {
	Secret       string `koanf:"secret" mapstructure:"secret"`
	Port         int    `koanf:"port" mapstructure:"port"`
	Path         string `koanf:"path" mapstructure:"path"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	Async        bool   `koanf:"async" mapstructure:"async"`
}

type StoreConfig struct {
	Driver           string `koanf:"driver" mapstructure:"driver"`
	DSN              string `koanf:"dsn" mapstructure:"dsn"`
	RedisAddr        string `koanf:"redis_addr" mapstructure:"redis_addr"`
	DeliveryTTLHours int    `koanf:"delivery_ttl_hours" mapstructure:"delivery_ttl_hours"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Client      ClientConfig   `koanf:"client" mapstructure:"client"`
	Receiver    ReceiverConfig `koanf:"receiver" mapstructure:"receiver"`
	Store       StoreConfig    `koanf:"store" mapstructure:"store"`
	Log         LogConfig      `koanf:"log" mapstructure:"log"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "whatsflow",
		Client: ClientConfig{
			BaseURL:               DefaultBaseURL,
			TimeoutSeconds:        DefaultTimeoutSeconds,
			LowRateLimitThreshold: DefaultLowRateThreshold,
		},
		Receiver: ReceiverConfig{
			Port:         DefaultReceiverPort,
			Path:         DefaultWebhookPath,
			MaxBodyBytes: 1 << 20,
		},
		Store: StoreConfig{
			Driver:           StoreDriverMemory,
			DeliveryTTLHours: 72,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the settings shared by every binary. Secrets and API keys are
// checked by ValidateReceiver and ValidateClient since each binary needs only one.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Receiver.Port < 0 || c.Receiver.Port > 65535 {
		return fmt.Errorf("core: receiver.port %d is invalid", c.Receiver.Port)
	}
	if path := strings.TrimSpace(c.Receiver.Path); path != "" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("core: receiver.path must start with /")
	}
	if base := strings.TrimSpace(c.Client.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: client.base_url %q is invalid", base)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", StoreDriverMemory, StoreDriverSQLite, StoreDriverPostgres, StoreDriverRedis:
	default:
		return fmt.Errorf("core: store.driver %q is invalid", c.Store.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "json", "console":
	default:
		return fmt.Errorf("core: log.format %q is invalid", c.Log.Format)
	}
	return nil
}

func (c Config) ValidateReceiver() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Receiver.Secret) == "" {
		return fmt.Errorf("core: receiver.secret is required (set WEBHOOK_SECRET)")
	}
	return nil
}

func (c Config) ValidateClient() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Client.APIKey) == "" {
		return fmt.Errorf("core: client.api_key is required (set WHATSFLOW_API_KEY)")
	}
	return nil
}
