package inbound

import (
	"context"
	"strings"

	"github.com/goliatone/go-whatsflow/core"
)

// AutoResponseKeyword marks received messages an integrator would answer.
const AutoResponseKeyword = "hello"

// LoggingHandlers logs every event kind. It is what `whatsflow serve` runs
// when no other handlers are wired.
func LoggingHandlers(logger core.Logger) Handlers {
	logger = core.EnsureLogger(logger)
	return Handlers{
		MessageReceived: func(ctx context.Context, event Event, payload MessageReceived) error {
			fields := map[string]any{
				"delivery_id": event.DeliveryID,
				"from":        payload.Sender(),
				"message":     payload.Message,
				"device":      payload.DeviceName,
			}
			if strings.Contains(strings.ToLower(payload.Message), AutoResponseKeyword) {
				fields["auto_response"] = true
			}
			core.Log(ctx, logger, "info", "message received", fields)
			return nil
		},
		MessageSent: func(ctx context.Context, event Event, payload MessageSent) error {
			core.Log(ctx, logger, "info", "message sent", map[string]any{
				"delivery_id":  event.DeliveryID,
				"phone_number": payload.PhoneNumber,
				"message_id":   payload.MessageID,
				"status":       payload.Status,
			})
			return nil
		},
		MessageDelivered: func(ctx context.Context, event Event, payload MessageDelivered) error {
			core.Log(ctx, logger, "info", "message delivered", map[string]any{
				"delivery_id": event.DeliveryID,
				"message_id":  payload.MessageID,
			})
			return nil
		},
		MessageFailed: func(ctx context.Context, event Event, payload MessageFailed) error {
			core.Log(ctx, logger, "warn", "message failed", map[string]any{
				"delivery_id": event.DeliveryID,
				"message_id":  payload.MessageID,
				"reason":      payload.ErrorMessage,
			})
			return nil
		},
		DeviceConnected: func(ctx context.Context, event Event, payload DeviceConnected) error {
			core.Log(ctx, logger, "info", "device connected", map[string]any{
				"delivery_id":  event.DeliveryID,
				"device":       payload.DeviceName,
				"phone_number": payload.PhoneNumber,
			})
			return nil
		},
		DeviceDisconnected: func(ctx context.Context, event Event, payload DeviceDisconnected) error {
			core.Log(ctx, logger, "warn", "device disconnected", map[string]any{
				"delivery_id":     event.DeliveryID,
				"device":          payload.DeviceName,
				"phone_number":    payload.PhoneNumber,
				"reason":          payload.Reason,
				"disconnected_at": payload.DisconnectedAt,
			})
			return nil
		},
		DeviceQRUpdated: func(ctx context.Context, event Event, payload DeviceQRUpdated) error {
			core.Log(ctx, logger, "info", "device qr code updated", map[string]any{
				"delivery_id": event.DeliveryID,
				"device":      payload.DeviceName,
				"device_id":   payload.DeviceID,
			})
			return nil
		},
	}
}
