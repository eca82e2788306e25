package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-whatsflow/core"
)

type sendMessageBody struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) (core.Message, error) {
	if err := requireField("phone_number", phoneNumber); err != nil {
		return core.Message{}, err
	}
	if err := requireField("message", message); err != nil {
		return core.Message{}, err
	}
	return fetchData[core.Message](ctx, c, request{
		method: http.MethodPost,
		path:   "/messages/send",
		body:   sendMessageBody{PhoneNumber: strings.TrimSpace(phoneNumber), Message: message},
	})
}

func (c *Client) GetMessageStatus(ctx context.Context, messageID string) (core.Message, error) {
	if err := requireField("message_id", messageID); err != nil {
		return core.Message{}, err
	}
	return fetchData[core.Message](ctx, c, request{
		method: http.MethodGet,
		path:   "/messages/" + escapeID(messageID),
	})
}

func (c *Client) ListMessages(ctx context.Context, opts core.ListMessagesOptions) (core.MessagePage, error) {
	page, limit := core.NormalizePage(opts.Page, opts.Limit)
	query := map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}
	if contactID := strings.TrimSpace(opts.ContactID); contactID != "" {
		query["contact_id"] = contactID
	}
	return fetchBody[core.MessagePage](ctx, c, request{
		method: http.MethodGet,
		path:   "/messages",
		query:  query,
	})
}
