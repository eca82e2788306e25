package query

import (
	"strings"
)

const (
	TypeGetMessageStatus      = "whatsflow.query.message.status"
	TypeListMessages          = "whatsflow.query.message.list"
	TypeListDevices           = "whatsflow.query.device.list"
	TypeGetDeviceStatus       = "whatsflow.query.device.status"
	TypeListContacts          = "whatsflow.query.contact.list"
	TypeGetContact            = "whatsflow.query.contact.get"
	TypeListWebhooks          = "whatsflow.query.webhook.list"
	TypeListWebhookDeliveries = "whatsflow.query.webhook.deliveries"
)

type GetMessageStatusMessage struct {
	MessageID string
}

func (GetMessageStatusMessage) Type() string { return TypeGetMessageStatus }

func (m GetMessageStatusMessage) Validate() error {
	return requireID("message_id", m.MessageID)
}

type ListMessagesMessage struct {
	Page      int
	Limit     int
	ContactID string
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	return validatePaging(m.Page, m.Limit)
}

type ListDevicesMessage struct{}

func (ListDevicesMessage) Type() string { return TypeListDevices }

func (ListDevicesMessage) Validate() error { return nil }

type GetDeviceStatusMessage struct {
	DeviceID string
}

func (GetDeviceStatusMessage) Type() string { return TypeGetDeviceStatus }

func (m GetDeviceStatusMessage) Validate() error {
	return requireID("device_id", m.DeviceID)
}

type ListContactsMessage struct {
	Page  int
	Limit int
}

func (ListContactsMessage) Type() string { return TypeListContacts }

func (m ListContactsMessage) Validate() error {
	return validatePaging(m.Page, m.Limit)
}

type GetContactMessage struct {
	ContactID string
}

func (GetContactMessage) Type() string { return TypeGetContact }

func (m GetContactMessage) Validate() error {
	return requireID("contact_id", m.ContactID)
}

type ListWebhooksMessage struct{}

func (ListWebhooksMessage) Type() string { return TypeListWebhooks }

func (ListWebhooksMessage) Validate() error { return nil }

// ListWebhookDeliveriesMessage leaves Limit at zero for the API default.
type ListWebhookDeliveriesMessage struct {
	WebhookID string
	Limit     int
}

func (ListWebhookDeliveriesMessage) Type() string { return TypeListWebhookDeliveries }

func (m ListWebhookDeliveriesMessage) Validate() error {
	if err := requireID("webhook_id", m.WebhookID); err != nil {
		return err
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

func requireID(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return queryValidationError(field, strings.ReplaceAll(field, "_", " ")+" is required")
	}
	return nil
}

func validatePaging(page, limit int) error {
	if page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
