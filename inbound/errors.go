package inbound

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
)

func inboundError(
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(core.HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return inboundError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(core.HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(message, goerrors.CategoryBadInput, core.ErrorBadInput, metadata)
}

func handlerFailed(source error, event Event) error {
	message := "inbound: handler failed"
	if source != nil {
		message = source.Error()
	}
	return inboundWrapError(
		source,
		goerrors.CategoryOperation,
		message,
		core.ErrorHandlerFailed,
		map[string]any{"event": event.Kind.String(), "delivery_id": event.DeliveryID},
	)
}
