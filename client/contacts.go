package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-whatsflow/core"
)

func (c *Client) ListContacts(ctx context.Context, opts core.ListContactsOptions) (core.ContactPage, error) {
	page, limit := core.NormalizePage(opts.Page, opts.Limit)
	return fetchBody[core.ContactPage](ctx, c, request{
		method: http.MethodGet,
		path:   "/contacts",
		query: map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		},
	})
}

func (c *Client) GetContact(ctx context.Context, contactID string) (core.Contact, error) {
	if err := requireField("contact_id", contactID); err != nil {
		return core.Contact{}, err
	}
	return fetchData[core.Contact](ctx, c, request{
		method: http.MethodGet,
		path:   "/contacts/" + escapeID(contactID),
	})
}

type verifyContactBody struct {
	PhoneNumber string `json:"phone_number"`
}

func (c *Client) VerifyContact(ctx context.Context, phoneNumber string) (core.ContactVerification, error) {
	if err := requireField("phone_number", phoneNumber); err != nil {
		return core.ContactVerification{}, err
	}
	return fetchData[core.ContactVerification](ctx, c, request{
		method: http.MethodPost,
		path:   "/contacts/verify",
		body:   verifyContactBody{PhoneNumber: strings.TrimSpace(phoneNumber)},
	})
}
