package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsflow/client"
)

var (
	_ gocmd.Commander[SendMessageMessage]   = (*SendMessageCommand)(nil)
	_ gocmd.Commander[VerifyContactMessage] = (*VerifyContactCommand)(nil)
	_ gocmd.Commander[CreateWebhookMessage] = (*CreateWebhookCommand)(nil)
	_ gocmd.Commander[UpdateWebhookMessage] = (*UpdateWebhookCommand)(nil)
	_ gocmd.Commander[DeleteWebhookMessage] = (*DeleteWebhookCommand)(nil)
	_ gocmd.Commander[TestWebhookMessage]   = (*TestWebhookCommand)(nil)

	_ MutatingClient = (*client.Client)(nil)
)
