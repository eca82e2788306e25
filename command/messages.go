package command

import (
	"strings"

	"github.com/goliatone/go-whatsflow/client"
	"github.com/goliatone/go-whatsflow/core"
)

const (
	TypeSendMessage   = "whatsflow.command.message.send"
	TypeVerifyContact = "whatsflow.command.contact.verify"
	TypeCreateWebhook = "whatsflow.command.webhook.create"
	TypeUpdateWebhook = "whatsflow.command.webhook.update"
	TypeDeleteWebhook = "whatsflow.command.webhook.delete"
	TypeTestWebhook   = "whatsflow.command.webhook.test"
)

type SendMessageMessage struct {
	PhoneNumber string
	Message     string
}

func (SendMessageMessage) Type() string { return TypeSendMessage }

func (m SendMessageMessage) Validate() error {
	if strings.TrimSpace(m.PhoneNumber) == "" {
		return commandValidationError("phone_number", "phone number is required")
	}
	if strings.TrimSpace(m.Message) == "" {
		return commandValidationError("message", "message is required")
	}
	return nil
}

type VerifyContactMessage struct {
	PhoneNumber string
}

func (VerifyContactMessage) Type() string { return TypeVerifyContact }

func (m VerifyContactMessage) Validate() error {
	if strings.TrimSpace(m.PhoneNumber) == "" {
		return commandValidationError("phone_number", "phone number is required")
	}
	return nil
}

type CreateWebhookMessage struct {
	Input core.CreateWebhookInput
}

func (CreateWebhookMessage) Type() string { return TypeCreateWebhook }

func (m CreateWebhookMessage) Validate() error {
	return client.ValidateCreateWebhook(m.Input)
}

type UpdateWebhookMessage struct {
	WebhookID string
	Input     core.UpdateWebhookInput
}

func (UpdateWebhookMessage) Type() string { return TypeUpdateWebhook }

func (m UpdateWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandValidationError("webhook_id", "webhook id is required")
	}
	return client.ValidateUpdateWebhook(m.Input)
}

type DeleteWebhookMessage struct {
	WebhookID string
}

func (DeleteWebhookMessage) Type() string { return TypeDeleteWebhook }

func (m DeleteWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandValidationError("webhook_id", "webhook id is required")
	}
	return nil
}

type TestWebhookMessage struct {
	WebhookID string
}

func (TestWebhookMessage) Type() string { return TypeTestWebhook }

func (m TestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandValidationError("webhook_id", "webhook id is required")
	}
	return nil
}
