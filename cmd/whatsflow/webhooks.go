package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/command"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/query"
	"github.com/goliatone/go-whatsflow/transport"
	"github.com/goliatone/go-whatsflow/webhooks"
	"github.com/spf13/cobra"
)

func newWebhooksCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "webhooks", Short: "Manage webhooks and sign or send deliveries"}
	cmd.AddCommand(
		newWebhooksListCommand(a),
		newWebhooksCreateCommand(a),
		newWebhooksUpdateCommand(a),
		newWebhooksDeleteCommand(a),
		newWebhooksTestCommand(a),
		newWebhooksDeliveriesCommand(a),
		newWebhooksSignCommand(a),
		newWebhooksDeliverCommand(a),
	)
	return cmd
}

func newWebhooksListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().ListWebhooks.Query, query.ListWebhooksMessage{})
			})
		},
	}
}

func newWebhooksCreateCommand(a *app) *cobra.Command {
	var (
		url         string
		events      []string
		description string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a webhook endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				created, err := execute[command.CreateWebhookMessage, core.Webhook](ctx, s.facade.Commands().CreateWebhook.Execute, command.CreateWebhookMessage{
					Input: core.CreateWebhookInput{
						URL:         url,
						Events:      parseEvents(events),
						Description: description,
					},
				})
				if err != nil {
					return nil, err
				}
				if created.Secret != "" {
					a.warn("save the webhook secret now, it is not shown again")
				}
				return created, nil
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "HTTPS endpoint that receives deliveries")
	cmd.Flags().StringSliceVar(&events, "events", nil, "event kinds to subscribe to")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	return cmd
}

func newWebhooksUpdateCommand(a *app) *cobra.Command {
	var (
		url         string
		events      []string
		description string
		active      bool
	)
	cmd := &cobra.Command{
		Use:   "update <webhook-id>",
		Short: "Change a webhook; only flags that are set are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var in core.UpdateWebhookInput
			if flags.Changed("url") {
				in.URL = &url
			}
			if flags.Changed("events") {
				in.Events = parseEvents(events)
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("active") {
				in.IsActive = &active
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return execute[command.UpdateWebhookMessage, core.Webhook](ctx, s.facade.Commands().UpdateWebhook.Execute, command.UpdateWebhookMessage{
					WebhookID: args[0],
					Input:     in,
				})
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "new endpoint URL")
	cmd.Flags().StringSliceVar(&events, "events", nil, "replacement event list")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().BoolVar(&active, "active", true, "enable or disable the webhook")
	return cmd
}

func newWebhooksDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <webhook-id>",
		Short: "Delete a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return execute[command.DeleteWebhookMessage, core.Ack](ctx, s.facade.Commands().DeleteWebhook.Execute, command.DeleteWebhookMessage{
					WebhookID: args[0],
				})
			})
		},
	}
}

func newWebhooksTestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <webhook-id>",
		Short: "Ask the API to send a test delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return execute[command.TestWebhookMessage, core.Ack](ctx, s.facade.Commands().TestWebhook.Execute, command.TestWebhookMessage{
					WebhookID: args[0],
				})
			})
		},
	}
}

func newWebhooksDeliveriesCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "deliveries <webhook-id>",
		Short: "Show recent delivery attempts for a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) (any, error) {
				return ask(ctx, s.facade.Queries().ListWebhookDeliveries.Query, query.ListWebhookDeliveriesMessage{
					WebhookID: args[0],
					Limit:     limit,
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of deliveries")
	return cmd
}

func newWebhooksSignCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [json]",
		Short: "Print the signature header value for a JSON payload",
		Long:  "Reads the payload from the argument, or stdin when none is given, and signs its canonical form.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := a.webhookSecret(cmd.Context())
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			signature, err := webhooks.Sign(payload, secret)
			if err != nil {
				return core.WrapError(err, goerrors.CategoryBadInput, "webhooks: sign payload").WithTextCode(core.ErrorBadInput)
			}
			_, err = fmt.Fprintln(a.stdout, signature)
			return err
		},
	}
	cmd.Flags().StringVar(&a.overrides.Receiver.Secret, "secret", "", "signing secret (overrides WEBHOOK_SECRET)")
	return cmd
}

func newWebhooksDeliverCommand(a *app) *cobra.Command {
	var (
		url         string
		event       string
		data        string
		maxAttempts int
	)
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Sign and post an event to a receiver, retrying with backoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			secret, err := a.webhookSecret(ctx)
			if err != nil {
				return err
			}
			cfg, err := a.config(ctx)
			if err != nil {
				return err
			}
			logger, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			envelope, err := buildEnvelope(event, data, time.Now())
			if err != nil {
				return err
			}

			sender := webhooks.NewSender(transport.NewRESTAdapter(a.httpClient))
			sender.Logger = logger.Named("sender")
			if maxAttempts > 0 {
				sender.MaxAttempts = maxAttempts
			}
			attempts, deliverErr := sender.DeliverWithRetry(ctx, webhooks.Target{URL: url, Secret: secret}, envelope)
			if len(attempts) > 0 {
				if err := a.printJSON(attempts); err != nil {
					return err
				}
			}
			if deliverErr != nil {
				return deliverErr
			}
			a.success("delivered %s after %d attempt(s)", envelope.Event, len(attempts))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "receiver URL")
	cmd.Flags().StringVar(&a.overrides.Receiver.Secret, "secret", "", "signing secret (overrides WEBHOOK_SECRET)")
	cmd.Flags().StringVar(&event, "event", "", "event kind; a webhook.test envelope is sent when empty")
	cmd.Flags().StringVar(&data, "data", "", "JSON event data")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", webhooks.DefaultSenderMaxAttempts, "attempts before giving up")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (a *app) webhookSecret(ctx context.Context) (string, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return "", err
	}
	if err := cfg.ValidateReceiver(); err != nil {
		return "", core.WrapError(err, goerrors.CategoryBadInput, err.Error()).WithTextCode(core.ErrorBadInput)
	}
	return cfg.Receiver.Secret, nil
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	body, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, core.NewError("webhooks: payload is required", goerrors.CategoryBadInput).WithTextCode(core.ErrorBadInput)
	}
	return body, nil
}

func buildEnvelope(event string, data string, at time.Time) (core.Envelope, error) {
	kind := core.ParseEventKind(event)
	if kind.Empty() {
		return webhooks.TestEnvelope("cli", at), nil
	}
	var payload any = map[string]any{}
	if strings.TrimSpace(data) != "" {
		if !json.Valid([]byte(data)) {
			return core.Envelope{}, core.NewError("webhooks: --data must be valid JSON", goerrors.CategoryBadInput).WithTextCode(core.ErrorBadInput)
		}
		payload = json.RawMessage(data)
	}
	return core.NewEnvelope(kind, payload, at)
}

func parseEvents(values []string) []core.EventKind {
	out := make([]core.EventKind, 0, len(values))
	for _, value := range values {
		if kind := core.ParseEventKind(value); !kind.Empty() {
			out = append(out, kind)
		}
	}
	return out
}
