package gocommand

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	whatsflow "github.com/goliatone/go-whatsflow"
	wfcommand "github.com/goliatone/go-whatsflow/command"
	"github.com/goliatone/go-whatsflow/core"
	wfquery "github.com/goliatone/go-whatsflow/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "whatsflow.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "whatsflow.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "whatsflow.test.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "whatsflow.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("whatsflow.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterFacade_DispatchesThroughClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/contacts/verify":
			_, _ = w.Write([]byte(`{"success":true,"data":{"phone_number":"+94771234567","exists":true}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/webhooks":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"wh_1","url":"https://example.com/hook","events":["message.received"],"is_active":true}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"not found"}`))
		}
	}))
	defer server.Close()

	api, err := whatsflow.NewClient("wf_test_key", whatsflow.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	facade, err := whatsflow.NewFacade(api)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterFacade(adapter, facade)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	t.Cleanup(subs.Unsubscribe)
	if len(subs) != 14 {
		t.Fatalf("expected 14 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	collector := command.NewResult[core.ContactVerification]()
	ctx := command.ContextWithResult(context.Background(), collector)
	if err := Dispatch(ctx, wfcommand.VerifyContactMessage{PhoneNumber: "+94771234567"}); err != nil {
		t.Fatalf("dispatch verify: %v", err)
	}
	verification, ok := collector.Load()
	if !ok || !verification.Exists {
		t.Fatalf("expected verification result, got %#v", verification)
	}

	hooks, err := Query[wfquery.ListWebhooksMessage, []core.Webhook](context.Background(), wfquery.ListWebhooksMessage{})
	if err != nil {
		t.Fatalf("query webhooks: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != "wh_1" {
		t.Fatalf("unexpected webhooks %#v", hooks)
	}
}

func TestRegisterFacade_RequiresFacade(t *testing.T) {
	if _, err := RegisterFacade(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing facade error")
	}
}
