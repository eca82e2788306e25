package sqlstore

import (
	"github.com/goliatone/go-whatsflow/ratelimit"
	"github.com/goliatone/go-whatsflow/webhooks"
)

var (
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
	_ ratelimit.StateStore    = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore    = (*CachedRateLimitStateStore)(nil)
)
