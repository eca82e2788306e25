package query

import (
	"context"

	"github.com/goliatone/go-whatsflow/core"
)

type MessageReader interface {
	GetMessageStatus(ctx context.Context, messageID string) (core.Message, error)
	ListMessages(ctx context.Context, opts core.ListMessagesOptions) (core.MessagePage, error)
}

type DeviceReader interface {
	ListDevices(ctx context.Context) ([]core.Device, error)
	GetDeviceStatus(ctx context.Context, deviceID string) (core.DeviceStatus, error)
}

type ContactReader interface {
	ListContacts(ctx context.Context, opts core.ListContactsOptions) (core.ContactPage, error)
	GetContact(ctx context.Context, contactID string) (core.Contact, error)
}

type WebhookReader interface {
	ListWebhooks(ctx context.Context) ([]core.Webhook, error)
	GetWebhookDeliveries(ctx context.Context, webhookID string, limit int) ([]core.WebhookDelivery, error)
}

// Reader is every read the API client offers.
type Reader interface {
	MessageReader
	DeviceReader
	ContactReader
	WebhookReader
}

type GetMessageStatusQuery struct {
	reader MessageReader
}

func NewGetMessageStatusQuery(reader MessageReader) *GetMessageStatusQuery {
	return &GetMessageStatusQuery{reader: reader}
}

func (q *GetMessageStatusQuery) Query(ctx context.Context, msg GetMessageStatusMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, queryDependencyError("query: message reader is required")
	}
	return q.reader.GetMessageStatus(ctx, msg.MessageID)
}

type ListMessagesQuery struct {
	reader MessageReader
}

func NewListMessagesQuery(reader MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) (core.MessagePage, error) {
	if q == nil || q.reader == nil {
		return core.MessagePage{}, queryDependencyError("query: message reader is required")
	}
	return q.reader.ListMessages(ctx, core.ListMessagesOptions{
		Page:      msg.Page,
		Limit:     msg.Limit,
		ContactID: msg.ContactID,
	})
}

type ListDevicesQuery struct {
	reader DeviceReader
}

func NewListDevicesQuery(reader DeviceReader) *ListDevicesQuery {
	return &ListDevicesQuery{reader: reader}
}

func (q *ListDevicesQuery) Query(ctx context.Context, _ ListDevicesMessage) ([]core.Device, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: device reader is required")
	}
	return q.reader.ListDevices(ctx)
}

type GetDeviceStatusQuery struct {
	reader DeviceReader
}

func NewGetDeviceStatusQuery(reader DeviceReader) *GetDeviceStatusQuery {
	return &GetDeviceStatusQuery{reader: reader}
}

func (q *GetDeviceStatusQuery) Query(ctx context.Context, msg GetDeviceStatusMessage) (core.DeviceStatus, error) {
	if q == nil || q.reader == nil {
		return core.DeviceStatus{}, queryDependencyError("query: device reader is required")
	}
	return q.reader.GetDeviceStatus(ctx, msg.DeviceID)
}

type ListContactsQuery struct {
	reader ContactReader
}

func NewListContactsQuery(reader ContactReader) *ListContactsQuery {
	return &ListContactsQuery{reader: reader}
}

func (q *ListContactsQuery) Query(ctx context.Context, msg ListContactsMessage) (core.ContactPage, error) {
	if q == nil || q.reader == nil {
		return core.ContactPage{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.ListContacts(ctx, core.ListContactsOptions{Page: msg.Page, Limit: msg.Limit})
}

type GetContactQuery struct {
	reader ContactReader
}

func NewGetContactQuery(reader ContactReader) *GetContactQuery {
	return &GetContactQuery{reader: reader}
}

func (q *GetContactQuery) Query(ctx context.Context, msg GetContactMessage) (core.Contact, error) {
	if q == nil || q.reader == nil {
		return core.Contact{}, queryDependencyError("query: contact reader is required")
	}
	return q.reader.GetContact(ctx, msg.ContactID)
}

type ListWebhooksQuery struct {
	reader WebhookReader
}

func NewListWebhooksQuery(reader WebhookReader) *ListWebhooksQuery {
	return &ListWebhooksQuery{reader: reader}
}

func (q *ListWebhooksQuery) Query(ctx context.Context, _ ListWebhooksMessage) ([]core.Webhook, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.ListWebhooks(ctx)
}

type ListWebhookDeliveriesQuery struct {
	reader WebhookReader
}

func NewListWebhookDeliveriesQuery(reader WebhookReader) *ListWebhookDeliveriesQuery {
	return &ListWebhookDeliveriesQuery{reader: reader}
}

func (q *ListWebhookDeliveriesQuery) Query(
	ctx context.Context,
	msg ListWebhookDeliveriesMessage,
) ([]core.WebhookDelivery, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.GetWebhookDeliveries(ctx, msg.WebhookID, msg.Limit)
}
