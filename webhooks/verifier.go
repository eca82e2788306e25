package webhooks

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HeaderVerifier checks the HMAC signature carried in a request header.
type HeaderVerifier struct {
	Header string
	Secret string
}

func NewHeaderVerifier(secret string) HeaderVerifier {
	return HeaderVerifier{Header: core.HeaderSignature, Secret: secret}
}

func (v HeaderVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := v.Header
	if strings.TrimSpace(header) == "" {
		header = core.HeaderSignature
	}
	if v.Secret == "" {
		return signatureError("webhooks: verifier secret is not configured", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	signature := HeaderValue(req.Headers, header)
	if signature == "" {
		return signatureError("webhooks: missing signature header", goerrors.CategoryAuth, http.StatusUnauthorized, map[string]any{
			"header": header,
		})
	}
	if !VerifyBody(req.Body, signature, v.Secret) {
		return signatureError("webhooks: signature mismatch", goerrors.CategoryAuth, http.StatusUnauthorized, map[string]any{
			"delivery_id": req.DeliveryID,
		})
	}
	return nil
}

// HeaderValue does a case-insensitive lookup over a flattened header map.
func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	if value, ok := headers[key]; ok {
		return strings.TrimSpace(value)
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func signatureError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	textCode := core.ErrorInvalidSignature
	if category == goerrors.CategoryInternal {
		textCode = core.ErrorInternal
	}
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
