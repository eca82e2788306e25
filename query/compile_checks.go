package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsflow/client"
	"github.com/goliatone/go-whatsflow/core"
)

var (
	_ gocmd.Querier[GetMessageStatusMessage, core.Message]                = (*GetMessageStatusQuery)(nil)
	_ gocmd.Querier[ListMessagesMessage, core.MessagePage]                = (*ListMessagesQuery)(nil)
	_ gocmd.Querier[ListDevicesMessage, []core.Device]                    = (*ListDevicesQuery)(nil)
	_ gocmd.Querier[GetDeviceStatusMessage, core.DeviceStatus]            = (*GetDeviceStatusQuery)(nil)
	_ gocmd.Querier[ListContactsMessage, core.ContactPage]                = (*ListContactsQuery)(nil)
	_ gocmd.Querier[GetContactMessage, core.Contact]                      = (*GetContactQuery)(nil)
	_ gocmd.Querier[ListWebhooksMessage, []core.Webhook]                  = (*ListWebhooksQuery)(nil)
	_ gocmd.Querier[ListWebhookDeliveriesMessage, []core.WebhookDelivery] = (*ListWebhookDeliveriesQuery)(nil)
	_ Reader                                                              = (*client.Client)(nil)
)
