package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/inbound"
	"github.com/goliatone/go-whatsflow/webhooks"
)

const JobIDPrefix = "whatsflow.webhook."

const (
	paramEvent      = "event"
	paramTimestamp  = "timestamp"
	paramDeliveryID = "delivery_id"
	paramData       = "data"
)

const defaultPollInterval = 500 * time.Millisecond

func JobID(kind core.EventKind) string {
	return JobIDPrefix + strings.TrimSpace(kind.String())
}

// RetryPolicy bounds how often a failed event is put back on the queue.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
	Backoff         webhooks.RetryPolicy
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
		Backoff:         webhooks.SenderRetryPolicy(),
	}
}

// NormalizeAttempt clamps nack options for the given attempt (1-based).
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff.NextDelay(attempt)
}

// ToExecutionMessage packs a verified event into a go-job message. The
// delivery id doubles as the idempotency key so a redelivered webhook is not
// queued twice.
func ToExecutionMessage(event inbound.Event) (*job.ExecutionMessage, error) {
	if event.Kind.Empty() {
		return nil, fmt.Errorf("gojob: event kind is required")
	}
	data := "{}"
	if len(event.Data) > 0 {
		data = string(event.Data)
	}
	id := JobID(event.Kind)
	return &job.ExecutionMessage{
		JobID:      id,
		ScriptPath: id,
		Parameters: map[string]any{
			paramEvent:      event.Kind.String(),
			paramTimestamp:  event.Timestamp,
			paramDeliveryID: event.DeliveryID,
			paramData:       data,
		},
		IdempotencyKey: strings.TrimSpace(event.DeliveryID),
	}, nil
}

func FromExecutionMessage(msg *job.ExecutionMessage) (inbound.Event, error) {
	if msg == nil {
		return inbound.Event{}, fmt.Errorf("gojob: execution message is required")
	}
	kind := core.ParseEventKind(stringParam(msg.Parameters, paramEvent))
	if kind.Empty() {
		kind = core.ParseEventKind(strings.TrimPrefix(strings.TrimSpace(msg.JobID), JobIDPrefix))
	}
	if kind.Empty() {
		return inbound.Event{}, fmt.Errorf("gojob: job %q carries no event", msg.JobID)
	}
	deliveryID := stringParam(msg.Parameters, paramDeliveryID)
	if deliveryID == "" {
		deliveryID = strings.TrimSpace(msg.IdempotencyKey)
	}
	event := inbound.Event{
		Kind:       kind,
		Timestamp:  stringParam(msg.Parameters, paramTimestamp),
		DeliveryID: deliveryID,
	}
	switch data := msg.Parameters[paramData].(type) {
	case string:
		event.Data = json.RawMessage(data)
	case []byte:
		event.Data = json.RawMessage(data)
	case nil:
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return inbound.Event{}, fmt.Errorf("gojob: encode event data: %w", err)
		}
		event.Data = encoded
	}
	if len(event.Data) > 0 && !json.Valid(event.Data) {
		return inbound.Event{}, fmt.Errorf("gojob: event data is not valid JSON")
	}
	return event, nil
}

// EventEnqueuer is the receiver's async hand-off.
type EventEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewEventEnqueuer(enqueuer queue.Enqueuer) *EventEnqueuer {
	return &EventEnqueuer{enqueuer: enqueuer}
}

func (e *EventEnqueuer) EnqueueEvent(ctx context.Context, event inbound.Event) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ToExecutionMessage(event)
	if err != nil {
		return err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

// EventWorker drains queued events into an inbound.Dispatcher. Attempts are
// counted per delivery id for the lifetime of the worker.
type EventWorker struct {
	Dequeuer     queue.Dequeuer
	Dispatcher   *inbound.Dispatcher
	Ledger       webhooks.DeliveryLedger
	Policy       RetryPolicy
	Hook         worker.Hook
	Logger       core.Logger
	PollInterval time.Duration
	Now          func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewEventWorker(dequeuer queue.Dequeuer, dispatcher *inbound.Dispatcher, logger core.Logger) *EventWorker {
	return &EventWorker{
		Dequeuer:     dequeuer,
		Dispatcher:   dispatcher,
		Policy:       DefaultRetryPolicy(),
		Logger:       core.EnsureLogger(logger),
		PollInterval: defaultPollInterval,
	}
}

// Run consumes deliveries until ctx is cancelled.
func (w *EventWorker) Run(ctx context.Context) error {
	if w == nil || w.Dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		delivery, err := w.Dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			core.Log(ctx, w.Logger, "warn", "gojob: dequeue failed", map[string]any{"error": err.Error()})
			w.wait(ctx)
			continue
		}
		if delivery == nil {
			w.wait(ctx)
			continue
		}
		if err := w.Handle(ctx, delivery); err != nil {
			core.Log(ctx, w.Logger, "error", "gojob: settle delivery failed", map[string]any{"error": err.Error()})
		}
	}
}

// Handle processes one delivery and acks or nacks it. The returned error is
// about settling the delivery, not about the handler.
func (w *EventWorker) Handle(ctx context.Context, delivery queue.Delivery) error {
	if w == nil || w.Dispatcher == nil {
		return fmt.Errorf("gojob: dispatcher is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	event, err := FromExecutionMessage(msg)
	if err != nil {
		core.Log(ctx, w.Logger, "error", "gojob: dropping malformed job", map[string]any{"error": err.Error()})
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()})
	}

	attempt := w.nextAttempt(event.DeliveryID, msg.IdempotencyKey)
	startedAt := w.now()
	hookEvent := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt}
	w.hookStart(ctx, hookEvent)

	_, dispatchErr := w.Dispatcher.Dispatch(ctx, event)
	hookEvent.Duration = w.now().Sub(startedAt)
	if dispatchErr == nil {
		w.forget(event.DeliveryID, msg.IdempotencyKey)
		if w.Ledger != nil && event.DeliveryID != "" {
			if err := w.Ledger.Complete(ctx, event.DeliveryID); err != nil {
				core.Log(ctx, w.Logger, "warn", "gojob: ledger complete failed", map[string]any{"error": err.Error()})
			}
		}
		w.hookSuccess(ctx, hookEvent)
		return delivery.Ack(ctx)
	}

	if w.Ledger != nil && event.DeliveryID != "" {
		if err := w.Ledger.Fail(ctx, event.DeliveryID, dispatchErr.Error()); err != nil {
			core.Log(ctx, w.Logger, "warn", "gojob: ledger fail failed", map[string]any{"error": err.Error()})
		}
	}
	opts := w.Policy.NormalizeAttempt(queue.NackOptions{
		Delay:   w.Policy.delay(attempt),
		Requeue: true,
		Reason:  dispatchErr.Error(),
	}, attempt)
	hookEvent.Err = dispatchErr
	hookEvent.Delay = opts.Delay
	if opts.Requeue {
		w.hookRetry(ctx, hookEvent)
	} else {
		w.forget(event.DeliveryID, msg.IdempotencyKey)
		w.hookFailure(ctx, hookEvent)
	}
	core.Log(ctx, w.Logger, "warn", "gojob: event handler failed", map[string]any{
		"event":       event.Kind.String(),
		"delivery_id": event.DeliveryID,
		"attempt":     attempt,
		"requeue":     opts.Requeue,
		"dead_letter": opts.DeadLetter,
		"error":       dispatchErr.Error(),
	})
	return delivery.Nack(ctx, opts)
}

func (w *EventWorker) nextAttempt(keys ...string) int {
	key := firstKey(keys...)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempts == nil {
		w.attempts = map[string]int{}
	}
	if key == "" {
		return 1
	}
	w.attempts[key]++
	return w.attempts[key]
}

func (w *EventWorker) forget(keys ...string) {
	key := firstKey(keys...)
	if key == "" {
		return
	}
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}

func (w *EventWorker) wait(ctx context.Context) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *EventWorker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *EventWorker) hookStart(ctx context.Context, event worker.Event) {
	if w.Hook != nil {
		w.Hook.OnStart(ctx, event)
	}
}

func (w *EventWorker) hookSuccess(ctx context.Context, event worker.Event) {
	if w.Hook != nil {
		w.Hook.OnSuccess(ctx, event)
	}
}

func (w *EventWorker) hookFailure(ctx context.Context, event worker.Event) {
	if w.Hook != nil {
		w.Hook.OnFailure(ctx, event)
	}
}

func (w *EventWorker) hookRetry(ctx context.Context, event worker.Event) {
	if w.Hook != nil {
		w.Hook.OnRetry(ctx, event)
	}
}

// LoggingHook reports worker lifecycle events through a glog logger.
type LoggingHook struct {
	Logger core.Logger
}

func (h LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "gojob: job started", event)
}

func (h LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "gojob: job succeeded", event)
}

func (h LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "gojob: job failed", event)
}

func (h LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "gojob: job scheduled for retry", event)
}

func (h LoggingHook) log(ctx context.Context, level string, msg string, event worker.Event) {
	fields := map[string]any{
		"attempt":     event.Attempt,
		"duration_ms": event.Duration.Milliseconds(),
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message != nil {
		fields["job_id"] = message.JobID
		fields["delivery_id"] = message.IdempotencyKey
	}
	if event.Delay > 0 {
		fields["delay_ms"] = event.Delay.Milliseconds()
	}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	core.Log(ctx, h.Logger, level, msg, fields)
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func firstKey(keys ...string) string {
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			return key
		}
	}
	return ""
}

var _ worker.Hook = LoggingHook{}
