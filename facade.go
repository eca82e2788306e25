package whatsflow

import (
	"fmt"

	wfcommand "github.com/goliatone/go-whatsflow/command"
	wfquery "github.com/goliatone/go-whatsflow/query"
)

// CommandQueryClient is what the facade needs from the API client. *Client
// satisfies it; tests pass stubs.
type CommandQueryClient interface {
	wfcommand.MutatingClient
	wfquery.Reader
}

type Commands struct {
	SendMessage   *wfcommand.SendMessageCommand
	VerifyContact *wfcommand.VerifyContactCommand
	CreateWebhook *wfcommand.CreateWebhookCommand
	UpdateWebhook *wfcommand.UpdateWebhookCommand
	DeleteWebhook *wfcommand.DeleteWebhookCommand
	TestWebhook   *wfcommand.TestWebhookCommand
}

type Queries struct {
	GetMessageStatus      *wfquery.GetMessageStatusQuery
	ListMessages          *wfquery.ListMessagesQuery
	ListDevices           *wfquery.ListDevicesQuery
	GetDeviceStatus       *wfquery.GetDeviceStatusQuery
	ListContacts          *wfquery.ListContactsQuery
	GetContact            *wfquery.GetContactQuery
	ListWebhooks          *wfquery.ListWebhooksQuery
	ListWebhookDeliveries *wfquery.ListWebhookDeliveriesQuery
}

type Facade struct {
	client   CommandQueryClient
	commands Commands
	queries  Queries
}

func NewFacade(client CommandQueryClient) (*Facade, error) {
	if client == nil {
		return nil, fmt.Errorf("whatsflow: api client is required")
	}

	facade := &Facade{client: client}
	facade.commands = Commands{
		SendMessage:   wfcommand.NewSendMessageCommand(client),
		VerifyContact: wfcommand.NewVerifyContactCommand(client),
		CreateWebhook: wfcommand.NewCreateWebhookCommand(client),
		UpdateWebhook: wfcommand.NewUpdateWebhookCommand(client),
		DeleteWebhook: wfcommand.NewDeleteWebhookCommand(client),
		TestWebhook:   wfcommand.NewTestWebhookCommand(client),
	}
	facade.queries = Queries{
		GetMessageStatus:      wfquery.NewGetMessageStatusQuery(client),
		ListMessages:          wfquery.NewListMessagesQuery(client),
		ListDevices:           wfquery.NewListDevicesQuery(client),
		GetDeviceStatus:       wfquery.NewGetDeviceStatusQuery(client),
		ListContacts:          wfquery.NewListContactsQuery(client),
		GetContact:            wfquery.NewGetContactQuery(client),
		ListWebhooks:          wfquery.NewListWebhooksQuery(client),
		ListWebhookDeliveries: wfquery.NewListWebhookDeliveriesQuery(client),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Client() CommandQueryClient {
	if f == nil {
		return nil
	}
	return f.client
}

var _ CommandQueryClient = (*Client)(nil)
