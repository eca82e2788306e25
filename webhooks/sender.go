package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/google/uuid"
)

const (
	SenderUserAgent          = "WhatsFlow-Webhooks/1.0"
	DefaultSenderTimeout     = 30 * time.Second
	DefaultSenderMaxAttempts = 5
	MaxStoredResponseBytes   = 1000
)

type Target struct {
	URL    string
	Secret string
}

// DeliveryAttempt is the record of one outbound POST.
type DeliveryAttempt struct {
	DeliveryID   string
	Event        core.EventKind
	Attempt      int
	StatusCode   int
	ResponseBody string
	Success      bool
	Error        string
	Duration     time.Duration
	DeliveredAt  time.Time
}

// Sender signs envelopes and posts them to a receiver.
type Sender struct {
	Transport   core.TransportAdapter
	RetryPolicy RetryPolicy
	MaxAttempts int
	Timeout     time.Duration
	Logger      core.Logger
	Now         func() time.Time
	NewID       func() string
	Sleep       func(ctx context.Context, delay time.Duration) error
}

func NewSender(transport core.TransportAdapter) *Sender {
	return &Sender{
		Transport:   transport,
		RetryPolicy: SenderRetryPolicy(),
		MaxAttempts: DefaultSenderMaxAttempts,
		Timeout:     DefaultSenderTimeout,
		Logger:      core.EnsureLogger(nil),
	}
}

// Deliver makes a single attempt with a fresh delivery id.
func (s *Sender) Deliver(ctx context.Context, target Target, envelope core.Envelope) (DeliveryAttempt, error) {
	body, signature, err := s.prepare(target, envelope)
	if err != nil {
		return DeliveryAttempt{}, err
	}
	return s.attempt(ctx, target, envelope.Event, body, signature, s.newID(), 1)
}

// DeliverWithRetry keeps posting until a 2xx, MaxAttempts, or ctx is done.
// Every attempt reuses the same delivery id so the receiver can dedupe.
func (s *Sender) DeliverWithRetry(ctx context.Context, target Target, envelope core.Envelope) ([]DeliveryAttempt, error) {
	body, signature, err := s.prepare(target, envelope)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultSenderMaxAttempts
	}
	policy := s.RetryPolicy
	if policy == nil {
		policy = SenderRetryPolicy()
	}
	deliveryID := s.newID()
	attempts := make([]DeliveryAttempt, 0, maxAttempts)

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		attempt, err := s.attempt(ctx, target, envelope.Event, body, signature, deliveryID, n)
		attempts = append(attempts, attempt)
		if err == nil {
			return attempts, nil
		}
		lastErr = err
		if n == maxAttempts {
			break
		}
		delay := policy.NextDelay(n)
		core.Log(ctx, s.Logger, "warn", "webhook delivery failed, retrying", map[string]any{
			"delivery_id": deliveryID,
			"event":       envelope.Event.String(),
			"attempt":     n,
			"delay":       delay.String(),
			"error":       err.Error(),
		})
		if err := s.sleep(ctx, delay); err != nil {
			return attempts, core.WrapError(err, goerrors.CategoryOperation, "webhooks: delivery cancelled").
				WithTextCode(core.ErrorNetwork)
		}
	}
	return attempts, lastErr
}

func (s *Sender) prepare(target Target, envelope core.Envelope) ([]byte, string, error) {
	if s == nil || s.Transport == nil {
		return nil, "", core.NewError("webhooks: sender requires a transport", goerrors.CategoryInternal)
	}
	if strings.TrimSpace(target.URL) == "" {
		return nil, "", core.NewError("webhooks: target url is required", goerrors.CategoryBadInput)
	}
	if target.Secret == "" {
		return nil, "", core.NewError("webhooks: target secret is required", goerrors.CategoryBadInput)
	}
	if strings.TrimSpace(envelope.Event.String()) == "" {
		return nil, "", core.NewError("webhooks: envelope event is required", goerrors.CategoryBadInput)
	}
	if envelope.Timestamp == "" {
		envelope.Timestamp = s.now().Format(time.RFC3339Nano)
	}
	if len(envelope.Data) == 0 {
		envelope.Data = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, "", core.WrapError(err, goerrors.CategoryBadInput, "webhooks: encode envelope")
	}
	return body, SignBody(body, target.Secret), nil
}

func (s *Sender) attempt(
	ctx context.Context,
	target Target,
	event core.EventKind,
	body []byte,
	signature string,
	deliveryID string,
	n int,
) (DeliveryAttempt, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSenderTimeout
	}
	record := DeliveryAttempt{
		DeliveryID:  deliveryID,
		Event:       event,
		Attempt:     n,
		DeliveredAt: s.now(),
	}

	res, err := s.Transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    target.URL,
		Headers: map[string]string{
			"Content-Type":        "application/json",
			"User-Agent":          SenderUserAgent,
			core.HeaderEvent:      event.String(),
			core.HeaderSignature:  signature,
			core.HeaderDeliveryID: deliveryID,
		},
		Body:    body,
		Timeout: timeout,
	})
	if err != nil {
		record.Error = err.Error()
		return record, err
	}

	record.StatusCode = res.StatusCode
	record.Duration = res.Duration
	record.ResponseBody = truncate(string(res.Body), MaxStoredResponseBytes)
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		record.Success = true
		return record, nil
	}

	message := fmt.Sprintf("webhooks: receiver responded with status %d", res.StatusCode)
	record.Error = message
	return record, core.NewError(message, goerrors.CategoryExternal).
		WithTextCode(core.ErrorAPI).
		WithMetadata(map[string]any{"status_code": res.StatusCode, "delivery_id": deliveryID})
}

// TestEnvelope builds the body sent by the test-delivery endpoint.
func TestEnvelope(webhookID string, at time.Time) core.Envelope {
	timestamp := at.UTC().Format(time.RFC3339Nano)
	data, _ := json.Marshal(map[string]any{
		"message":    "This is a test webhook delivery from WhatsFlow",
		"timestamp":  timestamp,
		"webhook_id": webhookID,
	})
	return core.Envelope{
		Event:     core.EventWebhookTest,
		Timestamp: timestamp,
		Data:      data,
	}
}

func (s *Sender) newID() string {
	if s.NewID != nil {
		if id := strings.TrimSpace(s.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func (s *Sender) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sender) sleep(ctx context.Context, delay time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, delay)
	}
	return sleepContext(ctx, delay)
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	return value[:limit]
}
