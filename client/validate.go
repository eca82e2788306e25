package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-whatsflow/core"
)

func requireField(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return clientValidationError(field, field+" is required")
	}
	return nil
}

// ValidateWebhookURL accepts absolute http(s) URLs only.
func ValidateWebhookURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return clientValidationError("url", "url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return clientValidationError("url", "url must be an absolute http or https URL")
	}
	return nil
}

// ValidateEvents requires at least one subscribable event and rejects the
// rest.
func ValidateEvents(events []core.EventKind) error {
	if len(events) == 0 {
		return clientValidationError("events", "at least one event is required")
	}
	for _, event := range events {
		if !core.IsKnownEvent(event) {
			return clientValidationError("events", fmt.Sprintf("unknown event %q", event))
		}
	}
	return nil
}

func ValidateCreateWebhook(in core.CreateWebhookInput) error {
	if err := ValidateWebhookURL(in.URL); err != nil {
		return err
	}
	return ValidateEvents(in.Events)
}

// ValidateUpdateWebhook checks only the fields being changed.
func ValidateUpdateWebhook(in core.UpdateWebhookInput) error {
	if in.Empty() {
		return clientValidationError("webhook", "at least one field must be updated")
	}
	if in.URL != nil {
		if err := ValidateWebhookURL(*in.URL); err != nil {
			return err
		}
	}
	if in.Events != nil {
		if err := ValidateEvents(in.Events); err != nil {
			return err
		}
	}
	return nil
}
