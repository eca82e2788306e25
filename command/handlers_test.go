package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
)

type stubMutatingClient struct {
	sendFn   func(ctx context.Context, phone, text string) (core.Message, error)
	verifyFn func(ctx context.Context, phone string) (core.ContactVerification, error)
	createFn func(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error)
	updateFn func(ctx context.Context, id string, in core.UpdateWebhookInput) (core.Webhook, error)
	deleted  []string
	tested   []string
}

func (s *stubMutatingClient) SendMessage(ctx context.Context, phone, text string) (core.Message, error) {
	return s.sendFn(ctx, phone, text)
}

func (s *stubMutatingClient) VerifyContact(ctx context.Context, phone string) (core.ContactVerification, error) {
	return s.verifyFn(ctx, phone)
}

func (s *stubMutatingClient) CreateWebhook(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error) {
	return s.createFn(ctx, in)
}

func (s *stubMutatingClient) UpdateWebhook(ctx context.Context, id string, in core.UpdateWebhookInput) (core.Webhook, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubMutatingClient) DeleteWebhook(_ context.Context, id string) (core.Ack, error) {
	s.deleted = append(s.deleted, id)
	return core.Ack{Success: true, Message: "Webhook deleted"}, nil
}

func (s *stubMutatingClient) TestWebhook(_ context.Context, id string) (core.Ack, error) {
	s.tested = append(s.tested, id)
	return core.Ack{Success: true}, nil
}

var _ MutatingClient = (*stubMutatingClient)(nil)

func TestSendMessageCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := &stubMutatingClient{
		sendFn: func(_ context.Context, phone, text string) (core.Message, error) {
			if phone != "+94771234567" || text != "Hello" {
				t.Fatalf("unexpected send payload %q %q", phone, text)
			}
			return core.Message{ID: "msg_1", Status: "queued"}, nil
		},
	}

	collector := gocmd.NewResult[core.Message]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewSendMessageCommand(svc).Execute(ctx, SendMessageMessage{PhoneNumber: "+94771234567", Message: "Hello"}); err != nil {
		t.Fatalf("execute send: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != "msg_1" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestWebhookCommands_DelegateToClient(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		svc := &stubMutatingClient{
			createFn: func(_ context.Context, in core.CreateWebhookInput) (core.Webhook, error) {
				return core.Webhook{ID: "wh_1", URL: in.URL, Secret: "whsec"}, nil
			},
		}
		collector := gocmd.NewResult[core.Webhook]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := NewCreateWebhookCommand(svc).Execute(ctx, CreateWebhookMessage{Input: core.CreateWebhookInput{
			URL:    "https://example.com/hook",
			Events: []core.EventKind{core.EventMessageReceived},
		}})
		if err != nil {
			t.Fatalf("execute create: %v", err)
		}
		created, ok := collector.Load()
		if !ok || created.Secret != "whsec" {
			t.Fatalf("expected created webhook to be stored, got %#v", created)
		}
	})

	t.Run("update", func(t *testing.T) {
		svc := &stubMutatingClient{
			updateFn: func(_ context.Context, id string, in core.UpdateWebhookInput) (core.Webhook, error) {
				if id != "wh_1" || in.IsActive == nil || *in.IsActive {
					t.Fatalf("unexpected update payload %q %#v", id, in)
				}
				return core.Webhook{ID: id}, nil
			},
		}
		inactive := false
		if err := NewUpdateWebhookCommand(svc).Execute(context.Background(), UpdateWebhookMessage{
			WebhookID: "wh_1",
			Input:     core.UpdateWebhookInput{IsActive: &inactive},
		}); err != nil {
			t.Fatalf("execute update: %v", err)
		}
	})

	t.Run("delete and test", func(t *testing.T) {
		svc := &stubMutatingClient{}
		if err := NewDeleteWebhookCommand(svc).Execute(context.Background(), DeleteWebhookMessage{WebhookID: "wh_2"}); err != nil {
			t.Fatalf("execute delete: %v", err)
		}
		if err := NewTestWebhookCommand(svc).Execute(context.Background(), TestWebhookMessage{WebhookID: "wh_3"}); err != nil {
			t.Fatalf("execute test: %v", err)
		}
		if len(svc.deleted) != 1 || svc.deleted[0] != "wh_2" || len(svc.tested) != 1 || svc.tested[0] != "wh_3" {
			t.Fatalf("unexpected delegation deleted=%v tested=%v", svc.deleted, svc.tested)
		}
	})
}

func TestCommands_PropagateClientErrors(t *testing.T) {
	svc := &stubMutatingClient{
		verifyFn: func(context.Context, string) (core.ContactVerification, error) {
			return core.ContactVerification{}, errors.New("api down")
		},
	}
	collector := gocmd.NewResult[core.ContactVerification]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewVerifyContactCommand(svc).Execute(ctx, VerifyContactMessage{PhoneNumber: "+1"}); err == nil {
		t.Fatalf("expected client error")
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result on failure")
	}
}

func TestCommands_MissingDependencyReturnsRichError(t *testing.T) {
	err := NewSendMessageCommand(nil).Execute(context.Background(), SendMessageMessage{PhoneNumber: "+1", Message: "x"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

func TestMessages_Validate(t *testing.T) {
	empty := ""
	cases := map[string]interface{ Validate() error }{
		"send without phone":   SendMessageMessage{Message: "x"},
		"send without text":    SendMessageMessage{PhoneNumber: "+1"},
		"verify without phone": VerifyContactMessage{},
		"create without url":   CreateWebhookMessage{Input: core.CreateWebhookInput{Events: []core.EventKind{core.EventMessageSent}}},
		"create no events":     CreateWebhookMessage{Input: core.CreateWebhookInput{URL: "https://example.com"}},
		"update without id":    UpdateWebhookMessage{Input: core.UpdateWebhookInput{Description: &empty}},
		"update nothing":       UpdateWebhookMessage{WebhookID: "wh_1"},
		"delete without id":    DeleteWebhookMessage{},
		"test without id":      TestWebhookMessage{},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := msg.Validate()
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors validation envelope, got %T", err)
			}
			if rich.TextCode != core.ErrorBadInput {
				t.Fatalf("expected %q, got %q", core.ErrorBadInput, rich.TextCode)
			}
		})
	}

	if err := (SendMessageMessage{PhoneNumber: "+1", Message: "hi"}).Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if got := (DeleteWebhookMessage{}).Type(); got != TypeDeleteWebhook {
		t.Fatalf("unexpected type %q", got)
	}
}
