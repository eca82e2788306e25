package core

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

type EventKind string

const (
	EventMessageReceived    EventKind = "message.received"
	EventMessageSent        EventKind = "message.sent"
	EventMessageDelivered   EventKind = "message.delivered"
	EventMessageFailed      EventKind = "message.failed"
	EventDeviceConnected    EventKind = "device.connected"
	EventDeviceDisconnected EventKind = "device.disconnected"
	EventDeviceQRUpdated    EventKind = "device.qr_updated"

	// EventWebhookTest is only emitted by the test delivery endpoint and is
	// not subscribable.
	EventWebhookTest EventKind = "webhook.test"
)

const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderDeliveryID = "X-Webhook-Delivery-Id"
	HeaderEvent      = "X-Webhook-Event"
	HeaderRequestID  = "X-Request-ID"
)

var availableEvents = []EventKind{
	EventMessageReceived,
	EventMessageSent,
	EventMessageDelivered,
	EventMessageFailed,
	EventDeviceConnected,
	EventDeviceDisconnected,
	EventDeviceQRUpdated,
}

// AvailableEvents returns the subscribable event kinds in their canonical order.
func AvailableEvents() []EventKind {
	return slices.Clone(availableEvents)
}

func IsKnownEvent(kind EventKind) bool {
	return slices.Contains(availableEvents, kind)
}

// ParseEventKind trims surrounding space only. Event names are case sensitive.
func ParseEventKind(value string) EventKind {
	return EventKind(strings.TrimSpace(value))
}

func (k EventKind) String() string {
	return string(k)
}

func (k EventKind) Empty() bool {
	return strings.TrimSpace(string(k)) == ""
}

// Envelope is the JSON body of every webhook delivery.
type Envelope struct {
	Event     EventKind       `json:"event"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data"`
}

func NewEnvelope(kind EventKind, data any, at time.Time) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Event:     kind,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Data:      raw,
	}, nil
}
