package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-whatsflow/core"
)

func (c *Client) ListWebhooks(ctx context.Context) ([]core.Webhook, error) {
	webhooks, err := fetchData[[]core.Webhook](ctx, c, request{
		method: http.MethodGet,
		path:   "/webhooks",
	})
	if err != nil {
		return nil, err
	}
	if webhooks == nil {
		webhooks = []core.Webhook{}
	}
	return webhooks, nil
}

// CreateWebhook registers an endpoint. The returned secret is only shown
// once; callers must store it.
func (c *Client) CreateWebhook(ctx context.Context, in core.CreateWebhookInput) (core.Webhook, error) {
	in.URL = strings.TrimSpace(in.URL)
	if err := ValidateCreateWebhook(in); err != nil {
		return core.Webhook{}, err
	}
	webhook, err := fetchData[core.Webhook](ctx, c, request{
		method: http.MethodPost,
		path:   "/webhooks",
		body:   in,
	})
	if err != nil {
		return core.Webhook{}, err
	}
	core.Log(ctx, c.logger, "warn", "Save this webhook secret, it will not be shown again", map[string]any{
		"webhook_id": webhook.ID,
	})
	return webhook, nil
}

func (c *Client) UpdateWebhook(ctx context.Context, webhookID string, in core.UpdateWebhookInput) (core.Webhook, error) {
	if err := requireField("webhook_id", webhookID); err != nil {
		return core.Webhook{}, err
	}
	if err := ValidateUpdateWebhook(in); err != nil {
		return core.Webhook{}, err
	}
	return fetchData[core.Webhook](ctx, c, request{
		method: http.MethodPut,
		path:   "/webhooks/" + escapeID(webhookID),
		body:   in,
	})
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) (core.Ack, error) {
	if err := requireField("webhook_id", webhookID); err != nil {
		return core.Ack{}, err
	}
	return fetchBody[core.Ack](ctx, c, request{
		method: http.MethodDelete,
		path:   "/webhooks/" + escapeID(webhookID),
	})
}

func (c *Client) TestWebhook(ctx context.Context, webhookID string) (core.Ack, error) {
	if err := requireField("webhook_id", webhookID); err != nil {
		return core.Ack{}, err
	}
	return fetchBody[core.Ack](ctx, c, request{
		method: http.MethodPost,
		path:   "/webhooks/" + escapeID(webhookID) + "/test",
	})
}

func (c *Client) GetWebhookDeliveries(ctx context.Context, webhookID string, limit int) ([]core.WebhookDelivery, error) {
	if err := requireField("webhook_id", webhookID); err != nil {
		return nil, err
	}
	_, limit = core.NormalizePage(1, limit)
	deliveries, err := fetchData[[]core.WebhookDelivery](ctx, c, request{
		method: http.MethodGet,
		path:   "/webhooks/" + escapeID(webhookID) + "/deliveries",
		query:  map[string]string{"limit": strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	if deliveries == nil {
		deliveries = []core.WebhookDelivery{}
	}
	return deliveries, nil
}
