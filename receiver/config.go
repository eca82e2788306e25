package receiver

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-whatsflow/core"
)

const (
	DefaultMaxBodyBytes    int64 = 1 << 20
	DefaultShutdownTimeout       = 30 * time.Second
)

type Config struct {
	Secret          string
	Port            int
	Path            string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

func ConfigFromCore(cfg core.ReceiverConfig) Config {
	return Config{
		Secret:       cfg.Secret,
		Port:         cfg.Port,
		Path:         cfg.Path,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
}

func (c Config) withDefaults() Config {
	out := c
	if out.Port == 0 {
		out.Port = core.DefaultReceiverPort
	}
	out.Path = strings.TrimSpace(out.Path)
	if out.Path == "" {
		out.Path = core.DefaultWebhookPath
	}
	if out.MaxBodyBytes <= 0 {
		out.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = DefaultShutdownTimeout
	}
	return out
}

func (c Config) validate() error {
	if c.Secret == "" {
		return receiverConfigError("secret", "WEBHOOK_SECRET environment variable not set")
	}
	if c.Port < 0 || c.Port > 65535 {
		return receiverConfigError("port", fmt.Sprintf("port %d is out of range", c.Port))
	}
	if !strings.HasPrefix(c.Path, "/") {
		return receiverConfigError("path", "path must start with /")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
