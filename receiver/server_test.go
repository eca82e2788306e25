package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/inbound"
	"github.com/goliatone/go-whatsflow/webhooks"
)

const testSecret = "whsec_test_secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestNew_RequiresSecret(t *testing.T) {
	server, err := New(Config{}, nil)
	if err == nil {
		t.Fatalf("expected missing secret error")
	}
	if server != nil {
		t.Fatalf("expected nil server on error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected bad input envelope, got %v", err)
	}

	if _, err := New(Config{Secret: testSecret, Path: "webhooks"}, nil); err == nil {
		t.Fatalf("expected relative path error")
	}
}

func TestWebhook_ProcessesSignedDelivery(t *testing.T) {
	var received []inbound.MessageReceived
	server := newTestServer(t, inbound.Handlers{
		MessageReceived: func(_ context.Context, _ inbound.Event, msg inbound.MessageReceived) error {
			received = append(received, msg)
			return nil
		},
	})

	body := []byte(`{"event":"message.received","timestamp":"2026-01-02T03:04:05.000Z","data":{"phone_number":"+94771234567","message":"hello there"}}`)
	rec := postWebhook(server, body, webhooks.SignBody(body, testSecret), "del-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeJSON(t, rec)
	if payload["success"] != true || payload["message"] != "Webhook processed" {
		t.Fatalf("unexpected response %#v", payload)
	}
	if len(received) != 1 || received[0].Message != "hello there" {
		t.Fatalf("expected handler to receive message, got %#v", received)
	}
	if rec.Header().Get(core.HeaderRequestID) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestWebhook_RejectsBadSignatures(t *testing.T) {
	calls := 0
	server := newTestServer(t, inbound.Handlers{
		MessageSent: func(context.Context, inbound.Event, inbound.MessageSent) error {
			calls++
			return nil
		},
	})
	body := []byte(`{"event":"message.sent","data":{"message_id":"msg_1"}}`)

	cases := map[string]string{
		"missing":      "",
		"wrong secret": webhooks.SignBody(body, "other"),
		"bare hex":     strings.TrimPrefix(webhooks.SignBody(body, testSecret), webhooks.SignaturePrefix),
	}
	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postWebhook(server, body, signature, "")
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if decodeJSON(t, rec)["error"] != "Invalid signature" {
				t.Fatalf("unexpected body %s", rec.Body.String())
			}
		})
	}
	if calls != 0 {
		t.Fatalf("expected no handler invocation, got %d", calls)
	}
}

func TestWebhook_AcceptsCanonicalSignatureOfReorderedBody(t *testing.T) {
	server := newTestServer(t, inbound.Handlers{})
	body := []byte(`{"timestamp":"2026-01-02T03:04:05Z","event":"device.connected","data":{"device_id":"dev_1"}}`)
	signature, err := webhooks.Sign(body, testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := postWebhook(server, body, signature, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected canonical signature to verify, got %d", rec.Code)
	}
}

func TestWebhook_SignedNonJSONIsBadRequest(t *testing.T) {
	server := newTestServer(t, inbound.Handlers{})
	body := []byte(`event=message.received`)
	rec := postWebhook(server, body, webhooks.SignBody(body, testSecret), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if decodeJSON(t, rec)["error"] != "Invalid payload" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestWebhook_DeduplicatesProcessedDeliveries(t *testing.T) {
	calls := 0
	server := newTestServer(t, inbound.Handlers{
		MessageDelivered: func(context.Context, inbound.Event, inbound.MessageDelivered) error {
			calls++
			return nil
		},
	})
	body := []byte(`{"event":"message.delivered","data":{"message_id":"msg_1"}}`)
	signature := webhooks.SignBody(body, testSecret)

	first := postWebhook(server, body, signature, "del-dup")
	second := postWebhook(server, body, signature, "del-dup")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200s, got %d and %d", first.Code, second.Code)
	}
	payload := decodeJSON(t, second)
	if payload["duplicate"] != true || payload["message"] != "Duplicate delivery" {
		t.Fatalf("unexpected duplicate response %#v", payload)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestWebhook_HandlerFailureAnswers200AndAllowsRedelivery(t *testing.T) {
	fail := true
	calls := 0
	server := newTestServer(t, inbound.Handlers{
		MessageFailed: func(context.Context, inbound.Event, inbound.MessageFailed) error {
			calls++
			if fail {
				return errors.New("crm unavailable")
			}
			return nil
		},
	})
	body := []byte(`{"event":"message.failed","data":{"message_id":"msg_1","error_message":"timeout"}}`)
	signature := webhooks.SignBody(body, testSecret)

	rec := postWebhook(server, body, signature, "del-retry")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeJSON(t, rec)
	if payload["success"] != false || payload["error"] != "crm unavailable" {
		t.Fatalf("unexpected failure response %#v", payload)
	}

	fail = false
	rec = postWebhook(server, body, signature, "del-retry")
	if decodeJSON(t, rec)["success"] != true {
		t.Fatalf("expected redelivery to be processed, got %s", rec.Body.String())
	}
	if calls != 2 {
		t.Fatalf("expected two handler calls, got %d", calls)
	}
}

func TestWebhook_UnknownEventIsAcknowledged(t *testing.T) {
	server := newTestServer(t, inbound.Handlers{})
	body := []byte(`{"event":"contact.created","data":{}}`)
	rec := postWebhook(server, body, webhooks.SignBody(body, testSecret), "")
	if rec.Code != http.StatusOK || decodeJSON(t, rec)["message"] != "Webhook processed" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhook_EventNamesAreCaseSensitive(t *testing.T) {
	calls := 0
	server := newTestServer(t, inbound.Handlers{
		MessageReceived: func(context.Context, inbound.Event, inbound.MessageReceived) error {
			calls++
			return errors.New("boom")
		},
	})

	body := []byte(`{"event":"MESSAGE.RECEIVED","data":{"phone_number":"+94771234567","message":"hi"}}`)
	rec := postWebhook(server, body, webhooks.SignBody(body, testSecret), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload := decodeJSON(t, rec); payload["success"] != true {
		t.Fatalf("expected success for an unknown event, got %#v", payload)
	}
	if calls != 0 {
		t.Fatalf("expected no handler calls, got %d", calls)
	}
}

func TestWebhook_AsyncModeEnqueues(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	server, err := New(Config{Secret: testSecret}, inbound.NewDispatcher(inbound.Handlers{}, nil), WithEnqueuer(enqueuer))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	body := []byte(`{"event":"device.qr_updated","data":{"device_id":"dev_1"}}`)
	rec := postWebhook(server, body, webhooks.SignBody(body, testSecret), "del-async")
	if decodeJSON(t, rec)["message"] != "Webhook queued" {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
	if len(enqueuer.events) != 1 || enqueuer.events[0].DeliveryID != "del-async" || enqueuer.events[0].Kind != core.EventDeviceQRUpdated {
		t.Fatalf("unexpected enqueued events %#v", enqueuer.events)
	}

	enqueuer.err = errors.New("queue full")
	body = []byte(`{"event":"device.qr_updated","data":{"device_id":"dev_2"}}`)
	rec = postWebhook(server, body, webhooks.SignBody(body, testSecret), "del-async-2")
	payload := decodeJSON(t, rec)
	if payload["success"] != false || payload["error"] != "queue full" {
		t.Fatalf("unexpected enqueue failure response %#v", payload)
	}
}

func TestWebhook_RejectsOversizedBody(t *testing.T) {
	server, err := New(Config{Secret: testSecret, MaxBodyBytes: 16}, inbound.NewDispatcher(inbound.Handlers{}, nil))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	body := []byte(`{"event":"message.sent","data":{"message_id":"msg_123456789"}}`)
	rec := postWebhook(server, body, webhooks.SignBody(body, testSecret), "")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestHealth_ReportsTimestamp(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server, err := New(Config{Secret: testSecret}, nil, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	payload := decodeJSON(t, rec)
	if payload["status"] != "healthy" || payload["timestamp"] != "2026-01-02T03:04:05.000Z" {
		t.Fatalf("unexpected health payload %#v", payload)
	}
}

func TestTestEndpoint_EchoesRequest(t *testing.T) {
	server := newTestServer(t, inbound.Handlers{})
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"ping":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(core.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	payload := decodeJSON(t, rec)
	if payload["received"] != true {
		t.Fatalf("unexpected payload %#v", payload)
	}
	body, _ := payload["body"].(map[string]any)
	if body["ping"] != true {
		t.Fatalf("expected echoed body, got %#v", payload["body"])
	}
	if rec.Header().Get(core.HeaderRequestID) != "req-42" {
		t.Fatalf("expected request id to be echoed")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	server := newTestServer(t, inbound.Handlers{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	res, err := http.Get("http://" + listener.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from live server, got %d", res.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

type stubEnqueuer struct {
	events []inbound.Event
	err    error
}

func (s *stubEnqueuer) EnqueueEvent(_ context.Context, event inbound.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestServer(t *testing.T, handlers inbound.Handlers) *Server {
	t.Helper()
	server, err := New(Config{Secret: testSecret}, inbound.NewDispatcher(handlers, nil))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func postWebhook(server *Server, body []byte, signature string, deliveryID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, core.DefaultWebhookPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(core.HeaderSignature, signature)
	}
	if deliveryID != "" {
		req.Header.Set(core.HeaderDeliveryID, deliveryID)
	}
	var envelope struct {
		Event string `json:"event"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Event != "" {
		req.Header.Set(core.HeaderEvent, envelope.Event)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}
