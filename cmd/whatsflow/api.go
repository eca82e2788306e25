package main

import (
	"context"
	"errors"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-whatsflow/client"
	"github.com/goliatone/go-whatsflow/command"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/query"
	"github.com/goliatone/go-whatsflow/ratelimit"
	"github.com/spf13/cobra"
)

type validatable interface {
	Validate() error
}

// execute runs a command handler and collects what it stored as its result.
func execute[M validatable, T any](ctx context.Context, run func(context.Context, M) error, msg M) (T, error) {
	var zero T
	if err := msg.Validate(); err != nil {
		return zero, err
	}
	collector := gocmd.NewResult[T]()
	if err := run(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	value, _ := collector.Load()
	return value, nil
}

func ask[M validatable, T any](ctx context.Context, run func(context.Context, M) (T, error), msg M) (T, error) {
	if err := msg.Validate(); err != nil {
		var zero T
		return zero, err
	}
	return run(ctx, msg)
}

// withSession opens a session, hands it to fn and prints whatever fn returns.
func (a *app) withSession(cmd *cobra.Command, fn func(context.Context, *session) (any, error)) error {
	ctx := cmd.Context()
	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	out, err := fn(ctx, s)
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func newMessagesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "messages", Short: "Send and inspect messages"}

	send := &cobra.Command{
		Use:   "send <phone> <message>",
		Short: "Send a text message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return execute[command.SendMessageMessage, core.Message](ctx, s.facade.Commands().SendMessage.Execute, command.SendMessageMessage{
					PhoneNumber: args[0],
					Message:     args[1],
				})
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <message-id>",
		Short: "Show the delivery status of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().GetMessageStatus.Query, query.GetMessageStatusMessage{MessageID: args[0]})
			})
		},
	}

	var listMsg query.ListMessagesMessage
	list := &cobra.Command{
		Use:   "list",
		Short: "List sent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().ListMessages.Query, listMsg)
			})
		},
	}
	list.Flags().IntVar(&listMsg.Page, "page", 0, "page number (1-based)")
	list.Flags().IntVar(&listMsg.Limit, "limit", 0, "page size")
	list.Flags().StringVar(&listMsg.ContactID, "contact", "", "only messages for this contact")

	cmd.AddCommand(send, get, list)
	return cmd
}

func newDevicesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "devices", Short: "Inspect linked devices"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().ListDevices.Query, query.ListDevicesMessage{})
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <device-id>",
		Short: "Show the connection status of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().GetDeviceStatus.Query, query.GetDeviceStatusMessage{DeviceID: args[0]})
			})
		},
	}

	cmd.AddCommand(list, status)
	return cmd
}

func newContactsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "contacts", Short: "Browse and verify contacts"}

	var listMsg query.ListContactsMessage
	list := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().ListContacts.Query, listMsg)
			})
		},
	}
	list.Flags().IntVar(&listMsg.Page, "page", 0, "page number (1-based)")
	list.Flags().IntVar(&listMsg.Limit, "limit", 0, "page size")

	get := &cobra.Command{
		Use:   "get <contact-id>",
		Short: "Show a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().GetContact.Query, query.GetContactMessage{ContactID: args[0]})
			})
		},
	}

	verify := &cobra.Command{
		Use:   "verify <phone>",
		Short: "Check whether a phone number is on WhatsApp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return execute[command.VerifyContactMessage, core.ContactVerification](ctx, s.facade.Commands().VerifyContact.Execute, command.VerifyContactMessage{
					PhoneNumber: args[0],
				})
			})
		},
	}

	cmd.AddCommand(list, get, verify)
	return cmd
}

func newRateLimitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit",
		Short: "Show the last rate-limit state reported for this API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return a.rateLimitReport(ctx, s.client)
			})
		},
	}
}

func (a *app) rateLimitReport(ctx context.Context, c *client.Client) (any, error) {
	state, err := c.RateLimitState(ctx)
	if errors.Is(err, ratelimit.ErrStateNotFound) {
		a.warn("no rate-limit state recorded yet for this key")
		return map[string]any{"key": c.RateLimitKey()}, nil
	}
	if err != nil {
		return nil, err
	}
	var throttled ratelimit.ThrottledError
	if err := c.Throttled(ctx); errors.As(err, &throttled) {
		a.warn("rate limited, retry after %ds", throttled.RetryAfterSeconds())
	} else if err != nil {
		return nil, err
	}
	return state, nil
}
