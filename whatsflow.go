package whatsflow

import (
	"context"

	"github.com/goliatone/go-whatsflow/client"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/webhooks"
)

type Config = core.Config

type ClientConfig = core.ClientConfig

type ReceiverConfig = core.ReceiverConfig

type Client = client.Client

type ClientOption = client.Option

type EventKind = core.EventKind

type Envelope = core.Envelope

const (
	EventMessageReceived    = core.EventMessageReceived
	EventMessageSent        = core.EventMessageSent
	EventMessageDelivered   = core.EventMessageDelivered
	EventMessageFailed      = core.EventMessageFailed
	EventDeviceConnected    = core.EventDeviceConnected
	EventDeviceDisconnected = core.EventDeviceDisconnected
	EventDeviceQRUpdated    = core.EventDeviceQRUpdated
)

var (
	WithBaseURL          = client.WithBaseURL
	WithHTTPClient       = client.WithHTTPClient
	WithTransport        = client.WithTransport
	WithTimeout          = client.WithTimeout
	WithLogger           = client.WithLogger
	WithRateLimitMonitor = client.WithRateLimitMonitor
	WithUserAgent        = client.WithUserAgent
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig reads WHATSFLOW_* variables (and the given dotenv files) over the
// defaults.
func LoadConfig(ctx context.Context, envFiles ...string) (Config, error) {
	return core.LoadConfig(ctx, core.NewEnvLoader(envFiles...), Config{})
}

func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	return client.New(apiKey, opts...)
}

func AvailableEvents() []EventKind {
	return core.AvailableEvents()
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(payload any, secret string) (string, error) {
	return webhooks.Sign(payload, secret)
}

// Verify reports whether signature matches payload under secret.
func Verify(payload any, signature string, secret string) bool {
	return webhooks.Verify(payload, signature, secret)
}
