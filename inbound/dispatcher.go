package inbound

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-whatsflow/core"
)

// Handlers holds one typed handler per event kind. Nil fields are not routed.
type Handlers struct {
	MessageReceived    func(ctx context.Context, event Event, payload MessageReceived) error
	MessageSent        func(ctx context.Context, event Event, payload MessageSent) error
	MessageDelivered   func(ctx context.Context, event Event, payload MessageDelivered) error
	MessageFailed      func(ctx context.Context, event Event, payload MessageFailed) error
	DeviceConnected    func(ctx context.Context, event Event, payload DeviceConnected) error
	DeviceDisconnected func(ctx context.Context, event Event, payload DeviceDisconnected) error
	DeviceQRUpdated    func(ctx context.Context, event Event, payload DeviceQRUpdated) error
}

// Outcome reports what Dispatch did with an event.
type Outcome struct {
	Event   core.EventKind
	Handled bool
}

type route func(ctx context.Context, event Event) error

type Dispatcher struct {
	routes map[core.EventKind]route
	logger core.Logger
}

func NewDispatcher(handlers Handlers, logger core.Logger) *Dispatcher {
	routes := map[core.EventKind]route{}
	add(routes, core.EventMessageReceived, handlers.MessageReceived)
	add(routes, core.EventMessageSent, handlers.MessageSent)
	add(routes, core.EventMessageDelivered, handlers.MessageDelivered)
	add(routes, core.EventMessageFailed, handlers.MessageFailed)
	add(routes, core.EventDeviceConnected, handlers.DeviceConnected)
	add(routes, core.EventDeviceDisconnected, handlers.DeviceDisconnected)
	add(routes, core.EventDeviceQRUpdated, handlers.DeviceQRUpdated)
	return &Dispatcher{routes: routes, logger: core.EnsureLogger(logger)}
}

// Dispatch decodes the event data into the payload type of its kind and runs
// the handler. Handler errors and panics come back as WHATSFLOW_HANDLER_FAILED.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (outcome Outcome, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	outcome = Outcome{Event: event.Kind}
	if d == nil {
		return outcome, nil
	}
	fields := map[string]any{"event": event.Kind.String(), "delivery_id": event.DeliveryID}

	handle, ok := d.routes[event.Kind]
	if !ok {
		core.Log(ctx, d.logger, "warn", "no handler for event", fields)
		return outcome, nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			outcome.Handled = true
			err = handlerFailed(fmt.Errorf("inbound: handler panic: %v", recovered), event)
			core.Log(ctx, d.logger, "error", "webhook handler panicked", fields)
		}
	}()

	outcome.Handled = true
	if handleErr := handle(ctx, event); handleErr != nil {
		fields["error"] = handleErr.Error()
		core.Log(ctx, d.logger, "error", "webhook handler failed", fields)
		return outcome, handlerFailed(handleErr, event)
	}
	core.Log(ctx, d.logger, "debug", "webhook handled", fields)
	return outcome, nil
}

func (d *Dispatcher) Handles(kind core.EventKind) bool {
	if d == nil {
		return false
	}
	_, ok := d.routes[kind]
	return ok
}

// Kinds lists the routed event kinds in AvailableEvents order.
func (d *Dispatcher) Kinds() []core.EventKind {
	out := []core.EventKind{}
	for _, kind := range core.AvailableEvents() {
		if d.Handles(kind) {
			out = append(out, kind)
		}
	}
	return out
}

type payload[T any] interface {
	*T
	setRaw(json.RawMessage)
}

func add[T any, P payload[T]](routes map[core.EventKind]route, kind core.EventKind, fn func(context.Context, Event, T) error) {
	if fn == nil {
		return
	}
	routes[kind] = func(ctx context.Context, event Event) error {
		var value T
		raw := event.Data
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &value); err != nil {
				return fmt.Errorf("inbound: decode %s payload: %w", kind, err)
			}
		}
		P(&value).setRaw(raw)
		return fn(ctx, event, value)
	}
}
