package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsflow/core"
)

type MessageSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) (core.Message, error)
}

type ContactVerifier interface {
	VerifyContact(ctx context.Context, phoneNumber string) (core.ContactVerification, error)
}

type WebhookManager interface {
	CreateWebhook(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error)
	UpdateWebhook(ctx context.Context, webhookID string, in core.UpdateWebhookInput) (core.Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) (core.Ack, error)
	TestWebhook(ctx context.Context, webhookID string) (core.Ack, error)
}

// MutatingClient is the part of the API client that changes remote state.
type MutatingClient interface {
	MessageSender
	ContactVerifier
	WebhookManager
}

type SendMessageCommand struct {
	sender MessageSender
}

func NewSendMessageCommand(sender MessageSender) *SendMessageCommand {
	return &SendMessageCommand{sender: sender}
}

func (c *SendMessageCommand) Execute(ctx context.Context, msg SendMessageMessage) error {
	if c == nil || c.sender == nil {
		return commandDependencyError("command: message sender is required")
	}
	out, err := c.sender.SendMessage(ctx, msg.PhoneNumber, msg.Message)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type VerifyContactCommand struct {
	verifier ContactVerifier
}

func NewVerifyContactCommand(verifier ContactVerifier) *VerifyContactCommand {
	return &VerifyContactCommand{verifier: verifier}
}

func (c *VerifyContactCommand) Execute(ctx context.Context, msg VerifyContactMessage) error {
	if c == nil || c.verifier == nil {
		return commandDependencyError("command: contact verifier is required")
	}
	out, err := c.verifier.VerifyContact(ctx, msg.PhoneNumber)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateWebhookCommand struct {
	webhooks WebhookManager
}

func NewCreateWebhookCommand(webhooks WebhookManager) *CreateWebhookCommand {
	return &CreateWebhookCommand{webhooks: webhooks}
}

func (c *CreateWebhookCommand) Execute(ctx context.Context, msg CreateWebhookMessage) error {
	if c == nil || c.webhooks == nil {
		return commandDependencyError("command: webhook manager is required")
	}
	out, err := c.webhooks.CreateWebhook(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateWebhookCommand struct {
	webhooks WebhookManager
}

func NewUpdateWebhookCommand(webhooks WebhookManager) *UpdateWebhookCommand {
	return &UpdateWebhookCommand{webhooks: webhooks}
}

func (c *UpdateWebhookCommand) Execute(ctx context.Context, msg UpdateWebhookMessage) error {
	if c == nil || c.webhooks == nil {
		return commandDependencyError("command: webhook manager is required")
	}
	out, err := c.webhooks.UpdateWebhook(ctx, msg.WebhookID, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteWebhookCommand struct {
	webhooks WebhookManager
}

func NewDeleteWebhookCommand(webhooks WebhookManager) *DeleteWebhookCommand {
	return &DeleteWebhookCommand{webhooks: webhooks}
}

func (c *DeleteWebhookCommand) Execute(ctx context.Context, msg DeleteWebhookMessage) error {
	if c == nil || c.webhooks == nil {
		return commandDependencyError("command: webhook manager is required")
	}
	out, err := c.webhooks.DeleteWebhook(ctx, msg.WebhookID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TestWebhookCommand struct {
	webhooks WebhookManager
}

func NewTestWebhookCommand(webhooks WebhookManager) *TestWebhookCommand {
	return &TestWebhookCommand{webhooks: webhooks}
}

func (c *TestWebhookCommand) Execute(ctx context.Context, msg TestWebhookMessage) error {
	if c == nil || c.webhooks == nil {
		return commandDependencyError("command: webhook manager is required")
	}
	out, err := c.webhooks.TestWebhook(ctx, msg.WebhookID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
