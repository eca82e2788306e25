package inbound

import (
	"bytes"
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
)

// Event is a verified webhook delivery ready for dispatch.
type Event struct {
	Kind       core.EventKind
	Timestamp  string
	DeliveryID string
	Data       json.RawMessage
}

func EventFromEnvelope(envelope core.Envelope, deliveryID string) Event {
	return Event{
		Kind:       core.ParseEventKind(envelope.Event.String()),
		Timestamp:  envelope.Timestamp,
		DeliveryID: strings.TrimSpace(deliveryID),
		Data:       envelope.Data,
	}
}

// DecodeEnvelope parses a webhook body. The body must be a JSON object with a
// non-empty "event"; "data" may be absent.
func DecodeEnvelope(body []byte) (core.Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return core.Envelope{}, inboundBadInput("inbound: payload must be a JSON object", nil)
	}
	var envelope core.Envelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return core.Envelope{}, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: invalid payload",
			core.ErrorBadInput,
			nil,
		)
	}
	if strings.TrimSpace(envelope.Event.String()) == "" {
		return core.Envelope{}, inboundBadInput("inbound: payload event is required", nil)
	}
	return envelope, nil
}

type MessageReceived struct {
	MessageID   string          `json:"message_id"`
	PhoneNumber string          `json:"phone_number"`
	ContactName string          `json:"contact_name,omitempty"`
	Message     string          `json:"message"`
	DeviceID    string          `json:"device_id,omitempty"`
	DeviceName  string          `json:"device_name,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// Sender is the contact name when known, otherwise the phone number.
func (m MessageReceived) Sender() string {
	if name := strings.TrimSpace(m.ContactName); name != "" {
		return name
	}
	return m.PhoneNumber
}

type MessageSent struct {
	MessageID   string          `json:"message_id"`
	PhoneNumber string          `json:"phone_number"`
	Message     string          `json:"message,omitempty"`
	Status      string          `json:"status,omitempty"`
	DeviceID    string          `json:"device_id,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

type MessageDelivered struct {
	MessageID   string          `json:"message_id"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	Status      string          `json:"status,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

type MessageFailed struct {
	MessageID    string          `json:"message_id"`
	PhoneNumber  string          `json:"phone_number,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

type DeviceConnected struct {
	DeviceID    string          `json:"device_id"`
	DeviceName  string          `json:"device_name,omitempty"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

type DeviceDisconnected struct {
	DeviceID       string          `json:"device_id"`
	DeviceName     string          `json:"device_name,omitempty"`
	PhoneNumber    string          `json:"phone_number,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	DisconnectedAt string          `json:"disconnected_at,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

type DeviceQRUpdated struct {
	DeviceID   string          `json:"device_id"`
	DeviceName string          `json:"device_name,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

func (m *MessageReceived) setRaw(raw json.RawMessage)    { m.Raw = raw }
func (m *MessageSent) setRaw(raw json.RawMessage)        { m.Raw = raw }
func (m *MessageDelivered) setRaw(raw json.RawMessage)   { m.Raw = raw }
func (m *MessageFailed) setRaw(raw json.RawMessage)      { m.Raw = raw }
func (d *DeviceConnected) setRaw(raw json.RawMessage)    { d.Raw = raw }
func (d *DeviceDisconnected) setRaw(raw json.RawMessage) { d.Raw = raw }
func (d *DeviceQRUpdated) setRaw(raw json.RawMessage)    { d.Raw = raw }
