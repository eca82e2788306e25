package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
)

func transportError(
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(core.HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(withAdapter(metadata))
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(core.HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(withAdapter(metadata))
	}
	return err
}

func withAdapter(metadata map[string]any) map[string]any {
	out := core.CloneFields(metadata)
	out["adapter"] = "rest"
	return out
}
